package capture

import "errors"

var (
	// ErrCaptureTimeout 在读取超时内未取到帧
	ErrCaptureTimeout = errors.New("capture: timed out waiting for frame")

	// ErrCaptureFault 采集设备故障
	ErrCaptureFault = errors.New("capture: device fault")

	// ErrCaptureDesync 左右眼序号分歧且在有界重试内未能重新同步
	ErrCaptureDesync = errors.New("capture: eyes desynchronized beyond resync limit")

	// ErrQueueClosed 帧队列已关闭
	ErrQueueClosed = errors.New("capture: frame queue closed")

	// ErrSourceClosed 帧源已关闭
	ErrSourceClosed = errors.New("capture: frame source closed")
)
