// Package bytebuffer 是 valyala/bytebufferpool 的薄封装，
// 供编码器等热路径复用临时缓冲区。
package bytebuffer

import "github.com/valyala/bytebufferpool"

// ByteBuffer 即 bytebufferpool.ByteBuffer，底层切片通过 B 字段访问。
type ByteBuffer = bytebufferpool.ByteBuffer

var (
	// Get 从池中取出一个空缓冲区。
	Get = bytebufferpool.Get

	// Put 将缓冲区归还到池中，归还后不得再访问其内容。
	Put = func(b *ByteBuffer) {
		if b != nil {
			bytebufferpool.Put(b)
		}
	}
)
