// Package approx は数値と入れ子になった数値列の近似比較を提供する
package approx

import (
	"math"
	"reflect"
)

// Kind は Value の種別
type Kind int

const (
	KindScalar Kind = iota // 数値
	KindSeq                // 数値列
)

// Value は数値または数値列を表すタグ付きバリアント
type Value struct {
	kind   Kind
	scalar float64
	seq    []Value
}

// Scalar は数値の Value を作成する
func Scalar(v float64) Value {
	return Value{kind: KindScalar, scalar: v}
}

// Seq は数値列の Value を作成する
func Seq(items ...Value) Value {
	return Value{kind: KindSeq, seq: items}
}

// Floats は float64 のスライスから数値列を作成する
func Floats(vs ...float64) Value {
	items := make([]Value, len(vs))
	for i, v := range vs {
		items[i] = Scalar(v)
	}
	return Seq(items...)
}

// Kind は種別を返す
func (v Value) Kind() Kind {
	return v.kind
}

// Len は数値列の長さを返す（数値の場合は0）
func (v Value) Len() int {
	return len(v.seq)
}

// ScalarEqual は |a-b| < epsilon のとき true を返す
func ScalarEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

// SequenceEqual は長さが一致し、全要素が Equal を満たすとき true を返す
func SequenceEqual(a, b []Value, epsilon float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i], epsilon) {
			return false
		}
	}
	return true
}

// Equal は種別に応じて ScalarEqual または SequenceEqual に振り分ける
// 種別が異なる場合は等しくない
func Equal(a, b Value, epsilon float64) bool {
	switch {
	case a.kind == KindSeq && b.kind == KindSeq:
		return SequenceEqual(a.seq, b.seq, epsilon)
	case a.kind == KindScalar && b.kind == KindScalar:
		return ScalarEqual(a.scalar, b.scalar, epsilon)
	default:
		return false
	}
}

// FromAny は数値・スライス・配列を Value に変換する
// 数値として解釈できない要素が含まれる場合は false を返す
func FromAny(v any) (Value, bool) {
	if v == nil {
		return Value{}, false
	}
	return fromReflect(reflect.ValueOf(v))
}

func fromReflect(rv reflect.Value) (Value, bool) {
	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer:
		if rv.IsNil() {
			return Value{}, false
		}
		return fromReflect(rv.Elem())
	case reflect.Float32, reflect.Float64:
		return Scalar(rv.Float()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Scalar(float64(rv.Int())), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Scalar(float64(rv.Uint())), true
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, ok := fromReflect(rv.Index(i))
			if !ok {
				return Value{}, false
			}
			items[i] = item
		}
		return Seq(items...), true
	case reflect.Struct:
		// image.Point のような数値フィールドのみの構造体は数値列として扱う
		items := make([]Value, 0, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			if !rv.Type().Field(i).IsExported() {
				continue
			}
			item, ok := fromReflect(rv.Field(i))
			if !ok {
				return Value{}, false
			}
			items = append(items, item)
		}
		return Seq(items...), true
	default:
		return Value{}, false
	}
}

// EqualAny は任意の値を近似比較する
// 構造が解釈できない場合や形が一致しない場合は等しくないとみなす
func EqualAny(a, b any, epsilon float64) bool {
	va, ok := FromAny(a)
	if !ok {
		return false
	}
	vb, ok := FromAny(b)
	if !ok {
		return false
	}
	return Equal(va, vb, epsilon)
}
