package capture

// Device 立体采集设备
// 外部协作者：设备内部的校正、对齐管线不在本系统范围内，这里只消费
// "产出同步帧对"这一事实。ReadPair 是阻塞的硬件读取，必须运行在
// 帧源自己的协程上，不能进事件循环。
type Device interface {
	// ReadPair 阻塞读取下一个同步的左右帧
	// 返回的两帧来自同一采集瞬间，CaptureIndex 由帧源分配。
	ReadPair() (left, right *RawFrame, err error)

	// Close 关闭设备
	Close() error
}
