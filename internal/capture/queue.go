package capture

import (
	"context"
	"sync"
)

// FrameQueue 单眼有界帧队列
// 单生产者单消费者：硬件读取协程写入，一个流适配器（或配对逻辑）读取。
// 队满时丢弃最旧的未读帧，生产者永不无限阻塞——新鲜度优先于完整性，
// 过期的立体帧比丢一帧更糟。
type FrameQueue struct {
	mu       sync.Mutex
	notEmpty chan struct{}
	frames   []*RawFrame
	capacity int
	dropped  uint64
	closed   bool
}

// NewFrameQueue 创建容量为 capacity 的帧队列
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity <= 0 {
		capacity = 2
	}
	return &FrameQueue{
		notEmpty: make(chan struct{}, 1),
		frames:   make([]*RawFrame, 0, capacity),
		capacity: capacity,
	}
}

// Push 入队一帧，队满时丢弃最旧帧
// 返回值表示是否有帧因队满被丢弃。
func (q *FrameQueue) Push(frame *RawFrame) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}

	evicted := false
	if len(q.frames) >= q.capacity {
		copy(q.frames, q.frames[1:])
		q.frames = q.frames[:len(q.frames)-1]
		q.dropped++
		evicted = true
	}
	q.frames = append(q.frames, frame)
	q.mu.Unlock()

	select {
	case q.notEmpty <- struct{}{}:
	default:
	}

	return evicted
}

// Pop 出队最旧的一帧，队空时阻塞直到有帧、队列关闭或 ctx 取消
func (q *FrameQueue) Pop(ctx context.Context) (*RawFrame, error) {
	for {
		q.mu.Lock()
		if len(q.frames) > 0 {
			frame := q.frames[0]
			copy(q.frames, q.frames[1:])
			q.frames = q.frames[:len(q.frames)-1]
			q.mu.Unlock()
			return frame, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-q.notEmpty:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// TryPop 非阻塞出队，队空时返回 nil
func (q *FrameQueue) TryPop() *RawFrame {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 {
		return nil
	}
	frame := q.frames[0]
	copy(q.frames, q.frames[1:])
	q.frames = q.frames[:len(q.frames)-1]
	return frame
}

// Len 返回当前队列长度
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Dropped 返回因队满被丢弃的帧总数
func (q *FrameQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close 关闭队列，唤醒阻塞的消费者
func (q *FrameQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.frames = nil
	q.mu.Unlock()

	select {
	case q.notEmpty <- struct{}{}:
	default:
	}
}
