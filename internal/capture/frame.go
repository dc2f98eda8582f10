package capture

import "fmt"

// PixelFormat 帧像素格式
type PixelFormat int

const (
	// PixelFormatGray8 单通道灰度，校正后的立体相机原生输出
	PixelFormatGray8 PixelFormat = iota

	// PixelFormatRGB24 三通道RGB
	PixelFormatRGB24
)

// String returns the string representation of PixelFormat
func (f PixelFormat) String() string {
	switch f {
	case PixelFormatGray8:
		return "gray8"
	case PixelFormatRGB24:
		return "rgb24"
	default:
		return "unknown"
	}
}

// BytesPerPixel 返回该格式每像素的字节数
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelFormatGray8:
		return 1
	case PixelFormatRGB24:
		return 3
	default:
		return 0
	}
}

// RawFrame 单眼原始帧
// 由帧源持有，直到交给流适配器做格式转换，转换期间所有权转移给适配器。
type RawFrame struct {
	Data   []byte
	Width  int
	Height int
	Format PixelFormat

	// CaptureIndex 采集序号，同一采集瞬间的左右帧序号相同
	CaptureIndex uint64
}

// Validate 检查帧缓冲区与声明的尺寸、格式是否一致
func (f *RawFrame) Validate() error {
	expected := f.Width * f.Height * f.Format.BytesPerPixel()
	if len(f.Data) != expected {
		return fmt.Errorf("frame buffer size mismatch: got %d bytes, expected %d (%dx%d %s)",
			len(f.Data), expected, f.Width, f.Height, f.Format)
	}
	return nil
}

// FramePair 一个同步的左右眼采集瞬间
// 不变量：Left 和 Right 来自同一硬件采集瞬间，CaptureIndex 相同。
// 创建后不可变，由两个流适配器各取一眼消费一次。
type FramePair struct {
	Left  *RawFrame
	Right *RawFrame

	// CaptureIndex 单调递增的采集序号
	CaptureIndex uint64
}
