package binn

import "fmt"

// Tag 是紧跟其后的值的一字节类型标记。
type Tag byte

// 标记取值固定不变，解码器拒绝表外的标记。
const (
	TagNull      Tag = 0x00
	TagTrue      Tag = 0x01
	TagFalse     Tag = 0x02
	TagUInt8     Tag = 0x20
	TagInt8      Tag = 0x21
	TagUInt16    Tag = 0x40
	TagInt16     Tag = 0x41
	TagUInt32    Tag = 0x60
	TagInt32     Tag = 0x61
	TagUInt64    Tag = 0x80
	TagInt64     Tag = 0x81
	TagFloat64   Tag = 0x82
	TagString    Tag = 0xA0
	TagBlob      Tag = 0xC0
	TagUniqueID  Tag = 0xC1
	TagTimestamp Tag = 0xC2
	TagList      Tag = 0xE0
	TagObject    Tag = 0xE2
)

// Kind 是与标记一一对应的语义类别。
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNull
	KindTrue
	KindFalse
	KindUint8
	KindInt8
	KindUint16
	KindInt16
	KindUint32
	KindInt32
	KindUint64
	KindInt64
	KindFloat64
	KindString
	KindBlob
	KindUniqueID
	KindTimestamp
	KindList
	KindObject

	numKinds
)

var kindNames = [numKinds]string{
	KindInvalid:   "invalid",
	KindNull:      "null",
	KindTrue:      "true",
	KindFalse:     "false",
	KindUint8:     "uint8",
	KindInt8:      "int8",
	KindUint16:    "uint16",
	KindInt16:     "int16",
	KindUint32:    "uint32",
	KindInt32:     "int32",
	KindUint64:    "uint64",
	KindInt64:     "int64",
	KindFloat64:   "float64",
	KindString:    "string",
	KindBlob:      "blob",
	KindUniqueID:  "uuid",
	KindTimestamp: "timestamp",
	KindList:      "list",
	KindObject:    "object",
}

var kindToTag = [numKinds]Tag{
	KindNull:      TagNull,
	KindTrue:      TagTrue,
	KindFalse:     TagFalse,
	KindUint8:     TagUInt8,
	KindInt8:      TagInt8,
	KindUint16:    TagUInt16,
	KindInt16:     TagInt16,
	KindUint32:    TagUInt32,
	KindInt32:     TagInt32,
	KindUint64:    TagUInt64,
	KindInt64:     TagInt64,
	KindFloat64:   TagFloat64,
	KindString:    TagString,
	KindBlob:      TagBlob,
	KindUniqueID:  TagUniqueID,
	KindTimestamp: TagTimestamp,
	KindList:      TagList,
	KindObject:    TagObject,
}

// tagToKind 由 kindToTag 反向生成，未登记的标记为 KindInvalid。
var tagToKind [256]Kind

// fixedWidth 记录定长载荷的字节数，-1 表示变长。
var fixedWidth [256]int8

func init() {
	for i := range fixedWidth {
		fixedWidth[i] = -1
	}
	for k := KindNull; k < numKinds; k++ {
		tagToKind[kindToTag[k]] = k
	}
	for tag, n := range map[Tag]int8{
		TagNull: 0, TagTrue: 0, TagFalse: 0,
		TagUInt8: 1, TagInt8: 1,
		TagUInt16: 2, TagInt16: 2,
		TagUInt32: 4, TagInt32: 4,
		TagUInt64: 8, TagInt64: 8, TagFloat64: 8,
		TagUniqueID: 16, TagTimestamp: 8,
	} {
		fixedWidth[tag] = n
	}
}

// TagOf 返回 kind 对应的标记。
func TagOf(k Kind) (Tag, bool) {
	if k == KindInvalid || k >= numKinds {
		return 0, false
	}
	return kindToTag[k], true
}

// KindOf 返回标记对应的类别。
func KindOf(t Tag) (Kind, bool) {
	k := tagToKind[t]
	return k, k != KindInvalid
}

// Valid 判断标记是否在标记表中。
func (t Tag) Valid() bool {
	return tagToKind[t] != KindInvalid
}

// FixedWidth 返回定长标记的载荷字节数，变长或非法标记返回 false。
func (t Tag) FixedWidth() (int, bool) {
	n := fixedWidth[t]
	return int(n), n >= 0
}

func (t Tag) String() string {
	if k, ok := KindOf(t); ok {
		return k.String()
	}
	return fmt.Sprintf("tag(0x%02X)", byte(t))
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}
