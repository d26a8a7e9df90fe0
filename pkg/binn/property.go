package binn

import (
	"reflect"
	"strings"
	"unsafe"

	"github.com/lk2023060901/binn-go/pkg/util/merr"
)

const tagName = "binn"

// PropertyDescriptor 描述对象的一个可访问属性。
// 字段属性同时可读可写，计算属性（无参方法）只读，只读属性不参与序列化。
type PropertyDescriptor struct {
	Name     string
	Owner    reflect.Type
	Type     reflect.Type
	CanRead  bool
	CanWrite bool
	// Index 为字段在 Owner 所属顶层类型中的嵌入路径，计算属性为 nil。
	Index []int

	method int
	get    func(instance reflect.Value) reflect.Value
}

// Serializable 判断属性是否会被写入二进制流。
func (p *PropertyDescriptor) Serializable() bool {
	return p.CanRead && p.CanWrite
}

// Computed 判断属性是否来自方法。
func (p *PropertyDescriptor) Computed() bool {
	return p.method >= 0
}

// Get 读取 instance 上的属性值。instance 可以是结构体或指向结构体的指针。
// 经过 nil 嵌入指针的字段返回无效的 reflect.Value。
func (p *PropertyDescriptor) Get(instance reflect.Value) reflect.Value {
	for instance.Kind() == reflect.Pointer || instance.Kind() == reflect.Interface {
		if instance.IsNil() {
			return reflect.Value{}
		}
		instance = instance.Elem()
	}
	if !instance.IsValid() {
		return reflect.Value{}
	}
	return p.get(instance)
}

// Value 读取 instance 上的属性值并转换为 any，无法读取时返回 nil。
func (p *PropertyDescriptor) Value(instance any) any {
	v := p.Get(reflect.ValueOf(instance))
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	return v.Interface()
}

// Accessor 负责发现一个类型的属性并绑定读取方式。
type Accessor interface {
	Resolve(t reflect.Type) ([]*PropertyDescriptor, error)
}

// ReflectAccessor 每次读取都沿字段路径走一遍反射。
type ReflectAccessor struct{}

var _ Accessor = ReflectAccessor{}

func (ReflectAccessor) Resolve(t reflect.Type) ([]*PropertyDescriptor, error) {
	specs, err := discover(t)
	if err != nil {
		return nil, err
	}
	props := make([]*PropertyDescriptor, 0, len(specs))
	for i := range specs {
		props = append(props, specs[i].descriptor(reflectGetter(specs[i])))
	}
	return props, nil
}

// CompiledAccessor 预先计算字段偏移量，读取时直接按地址取值。
// 穿过嵌入指针的字段退回到反射读取。
type CompiledAccessor struct{}

var _ Accessor = CompiledAccessor{}

func (CompiledAccessor) Resolve(t reflect.Type) ([]*PropertyDescriptor, error) {
	specs, err := discover(t)
	if err != nil {
		return nil, err
	}
	props := make([]*PropertyDescriptor, 0, len(specs))
	for i := range specs {
		s := specs[i]
		slow := reflectGetter(s)
		if s.method >= 0 || s.viaPointer {
			props = append(props, s.descriptor(slow))
			continue
		}
		ft, offset := s.field.Type, s.offset
		props = append(props, s.descriptor(func(v reflect.Value) reflect.Value {
			if !v.CanAddr() {
				return slow(v)
			}
			return reflect.NewAt(ft, unsafe.Add(v.Addr().UnsafePointer(), offset)).Elem()
		}))
	}
	return props, nil
}

func reflectGetter(s propertySpec) func(reflect.Value) reflect.Value {
	if s.method >= 0 {
		idx := s.method
		return func(v reflect.Value) reflect.Value {
			out := v.Method(idx).Call(nil)
			return out[0]
		}
	}
	index := s.index
	return func(v reflect.Value) reflect.Value {
		fv, err := v.FieldByIndexErr(index)
		if err != nil {
			return reflect.Value{}
		}
		return fv
	}
}

type propertySpec struct {
	name       string
	owner      reflect.Type
	field      reflect.StructField
	index      []int
	depth      int
	readonly   bool
	offset     uintptr
	viaPointer bool
	method     int
	methodType reflect.Type
}

func (s propertySpec) descriptor(get func(reflect.Value) reflect.Value) *PropertyDescriptor {
	p := &PropertyDescriptor{
		Name:    s.name,
		Owner:   s.owner,
		CanRead: true,
		method:  s.method,
		get:     get,
	}
	if s.method >= 0 {
		p.Type = s.methodType
		return p
	}
	p.Type = s.field.Type
	p.CanWrite = !s.readonly
	p.Index = s.index
	return p
}

// parseTag 解析 `binn:"name,readonly"`。
func parseTag(tag string) (name string, readonly bool, skip bool) {
	if tag == "-" {
		return "", false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == "readonly" {
			readonly = true
		}
	}
	return name, readonly, false
}

// discover 列出 t 的全部属性：先按声明顺序展开字段（含嵌入结构体），再追加计算属性。
// 同名字段取嵌入层级最浅者，同层级取先声明者。
func discover(t reflect.Type) ([]propertySpec, error) {
	if t == nil || t.Kind() != reflect.Struct {
		return nil, merr.WrapErrUnsupportedType(typeName(t), "not a struct")
	}

	var all []propertySpec
	var walk func(st reflect.Type, index []int, offset uintptr, viaPointer bool, depth int, visiting map[reflect.Type]bool)
	walk = func(st reflect.Type, index []int, offset uintptr, viaPointer bool, depth int, visiting map[reflect.Type]bool) {
		visiting[st] = true
		defer delete(visiting, st)

		for i := 0; i < st.NumField(); i++ {
			f := st.Field(i)
			tag := f.Tag.Get(tagName)
			name, readonly, skip := parseTag(tag)
			if skip {
				continue
			}
			path := make([]int, len(index)+1)
			copy(path, index)
			path[len(index)] = i

			if f.Anonymous && name == "" {
				et, ptr := f.Type, false
				if et.Kind() == reflect.Pointer {
					et, ptr = et.Elem(), true
				}
				if et.Kind() == reflect.Struct {
					// 未导出的嵌入指针无法安全解引用，跳过
					if ptr && !f.IsExported() {
						continue
					}
					if !visiting[et] {
						walk(et, path, offset+f.Offset, viaPointer || ptr, depth+1, visiting)
					}
					continue
				}
			}
			if !f.IsExported() {
				continue
			}
			if name == "" {
				name = f.Name
			}
			all = append(all, propertySpec{
				name:       name,
				owner:      st,
				field:      f,
				index:      path,
				depth:      depth,
				readonly:   readonly,
				offset:     offset + f.Offset,
				viaPointer: viaPointer,
				method:     -1,
			})
		}
	}
	walk(t, nil, 0, false, 0, map[reflect.Type]bool{})

	winner := make(map[string]int, len(all))
	for i, s := range all {
		if j, ok := winner[s.name]; !ok || s.depth < all[j].depth {
			winner[s.name] = i
		}
	}
	specs := make([]propertySpec, 0, len(winner)+t.NumMethod())
	for i, s := range all {
		if winner[s.name] == i {
			specs = append(specs, s)
		}
	}

	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if _, taken := winner[m.Name]; taken {
			continue
		}
		// 方法类型的第一个入参是接收者
		if m.Type.NumIn() != 1 || m.Type.NumOut() != 1 {
			continue
		}
		specs = append(specs, propertySpec{
			name:       m.Name,
			owner:      t,
			method:     i,
			methodType: m.Type.Out(0),
		})
	}
	return specs, nil
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
