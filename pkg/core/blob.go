package core

import "mygit/pkg/types"

// Blob 保存文件的原始内容，或者符号链接的目标路径
type Blob struct {
	id       types.ObjectID
	rawBytes []byte
	data     []byte
}

// NewBlob 封装并计算内容地址
func NewBlob(data []byte) *Blob {
	id, framed := CalculateHash(TypeBlob, data)
	return &Blob{
		id:       id,
		rawBytes: framed,
		data:     framed[len(framed)-len(data):],
	}
}

func (b *Blob) Type() ObjectType   { return TypeBlob }
func (b *Blob) ID() types.ObjectID { return b.id }
func (b *Blob) Bytes() []byte      { return b.rawBytes }
func (b *Blob) Payload() []byte    { return b.data }
func (b *Blob) Size() int64        { return int64(len(b.data)) }
