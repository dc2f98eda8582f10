package capture

import (
	"sync"
	"time"
)

// SyntheticDevice 合成立体设备
// 以固定间隔生成带图案的灰度帧对，用于无硬件运行和测试。
// 真实设备（校正后的立体相机）通过同样的 Device 接口接入。
type SyntheticDevice struct {
	width    int
	height   int
	interval time.Duration

	mu     sync.Mutex
	seq    uint64
	closed bool
	done   chan struct{}
}

// NewSyntheticDevice 创建合成设备
func NewSyntheticDevice(width, height int, interval time.Duration) *SyntheticDevice {
	return &SyntheticDevice{
		width:    width,
		height:   height,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// ReadPair 按配置的帧间隔生成下一个帧对
func (d *SyntheticDevice) ReadPair() (*RawFrame, *RawFrame, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, nil, ErrCaptureFault
	}
	seq := d.seq
	d.seq++
	d.mu.Unlock()

	select {
	case <-time.After(d.interval):
	case <-d.done:
		return nil, nil, ErrCaptureFault
	}

	return d.makeFrame(seq, 0), d.makeFrame(seq, 128), nil
}

// makeFrame 生成一帧滚动渐变图案，offset 区分左右眼
func (d *SyntheticDevice) makeFrame(seq uint64, offset byte) *RawFrame {
	data := make([]byte, d.width*d.height)
	shift := byte(seq % 256)
	for y := 0; y < d.height; y++ {
		rowBase := byte(y) + shift + offset
		row := data[y*d.width : (y+1)*d.width]
		for x := range row {
			row[x] = rowBase + byte(x)
		}
	}

	return &RawFrame{
		Data:   data,
		Width:  d.width,
		Height: d.height,
		Format: PixelFormatGray8,
	}
}

// Close 关闭合成设备，唤醒阻塞中的 ReadPair
func (d *SyntheticDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	close(d.done)
	return nil
}
