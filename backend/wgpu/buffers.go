//go:build !nogpu

package wgpu

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpuscan/gpucore"
)

type buffer struct {
	raw   hal.Buffer
	words int
}

func (b *buffer) size() uint64 { return uint64(b.words) * 4 }

// Allocate creates a zero-initialized storage buffer of the given number of
// 32-bit words.
func (b *Backend) Allocate(words int) (gpucore.BufferID, error) {
	if words <= 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: allocate %d words", gpucore.ErrBufferRange, words)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return gpucore.InvalidID, gpucore.ErrClosed
	}
	size := uint64(words) * 4
	if limit := b.Caps().MaxBufferSize; limit > 0 && size > limit {
		return gpucore.InvalidID, fmt.Errorf("%w: %d bytes exceeds device limit %d", gpucore.ErrBufferRange, size, limit)
	}

	raw, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "gpuscan_data",
		Size:  size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: create buffer: %w", err)
	}
	// Buffers are reused by the driver; clear explicitly.
	b.queue.WriteBuffer(raw, 0, make([]byte, size))

	id := gpucore.BufferID(b.allocID())
	b.buffers[id] = &buffer{raw: raw, words: words}
	return id, nil
}

// Free destroys a buffer. Unknown IDs are ignored.
func (b *Backend) Free(id gpucore.BufferID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, ok := b.buffers[id]
	if !ok {
		return
	}
	delete(b.buffers, id)
	if b.device != nil {
		b.device.DestroyBuffer(buf.raw)
	}
}

// Upload writes data at the start of the buffer.
func (b *Backend) Upload(id gpucore.BufferID, data []uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, err := b.lookupLocked(id)
	if err != nil {
		return err
	}
	if len(data) > buf.words {
		return fmt.Errorf("%w: upload %d words into %d", gpucore.ErrBufferRange, len(data), buf.words)
	}
	if len(data) == 0 {
		return nil
	}
	b.queue.WriteBuffer(buf.raw, 0, wordsToBytes(data))
	return nil
}

// Download copies count words starting at offset through a mappable
// staging buffer.
func (b *Backend) Download(id gpucore.BufferID, offset, count int) ([]uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, err := b.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	if offset < 0 || count < 0 || offset+count > buf.words {
		return nil, fmt.Errorf("%w: download [%d, %d) of %d words", gpucore.ErrBufferRange, offset, offset+count, buf.words)
	}
	if count == 0 {
		return []uint32{}, nil
	}

	size := uint64(count) * 4
	staging, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "gpuscan_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create staging buffer: %w", err)
	}
	defer b.device.DestroyBuffer(staging)

	enc, err := b.encoder("gpuscan_download")
	if err != nil {
		return nil, err
	}
	enc.CopyBufferToBuffer(buf.raw, staging, []hal.BufferCopy{
		{SrcOffset: uint64(offset) * 4, DstOffset: 0, Size: size},
	})
	if err := b.submit(enc); err != nil {
		return nil, err
	}

	raw := make([]byte, size)
	if err := b.queue.ReadBuffer(staging, 0, raw); err != nil {
		return nil, fmt.Errorf("wgpu: readback: %w", err)
	}
	return bytesToWords(raw), nil
}

func (b *Backend) lookupLocked(id gpucore.BufferID) (*buffer, error) {
	if b.closed {
		return nil, gpucore.ErrClosed
	}
	buf, ok := b.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", gpucore.ErrInvalidBuffer, id)
	}
	return buf, nil
}

func wordsToBytes(words []uint32) []byte {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

func bytesToWords(raw []byte) []uint32 {
	out := make([]uint32, len(raw)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return out
}
