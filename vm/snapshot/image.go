// Package snapshot captures call signatures as portable value images.
//
// An image is a self-contained description of a signature's positionals,
// named entries and metadata, detached from any heap. Images marshal to
// canonical CBOR, so equal signatures produce identical bytes, and can be
// restored into any interpreter. Object cells are captured by value for the
// built-in classes; instances of other classes are recorded as opaque and
// restore to an empty instance of the class when the target interpreter
// knows it, or to the null object when it does not.
package snapshot

import (
	"sort"

	"github.com/chazu/macaw/vm"
)

// Cell kind codes in the image format. Once assigned these values must not
// change: they are part of the wire format.
const (
	ImageKindInt    uint8 = 0
	ImageKindFloat  uint8 = 1
	ImageKindString uint8 = 2
	ImageKindObject uint8 = 3
)

// CellImage is one captured cell.
type CellImage struct {
	Kind   uint8        `cbor:"1,keyasint"`
	Int    int64        `cbor:"2,keyasint,omitempty"`
	Float  float64      `cbor:"3,keyasint,omitempty"`
	Str    string       `cbor:"4,keyasint,omitempty"`
	Null   bool         `cbor:"5,keyasint,omitempty"`
	Object *ObjectImage `cbor:"6,keyasint,omitempty"`
}

// ObjectImage is one captured object reference.
type ObjectImage struct {
	Class  string  `cbor:"1,keyasint"`
	Int    int64   `cbor:"2,keyasint,omitempty"`
	Float  float64 `cbor:"3,keyasint,omitempty"`
	Str    string  `cbor:"4,keyasint,omitempty"`
	Ints   []int64 `cbor:"5,keyasint,omitempty"`
	Opaque bool    `cbor:"6,keyasint,omitempty"`
}

// NamedImage is one captured named entry.
type NamedImage struct {
	Key  string    `cbor:"1,keyasint"`
	Cell CellImage `cbor:"2,keyasint"`
}

// MetadataImage captures the pass-through call metadata.
type MetadataImage struct {
	TypeTuple   *ObjectImage `cbor:"1,keyasint,omitempty"`
	ShortSig    string       `cbor:"2,keyasint,omitempty"`
	HasShortSig bool         `cbor:"3,keyasint,omitempty"`
	ArgFlags    *ObjectImage `cbor:"4,keyasint,omitempty"`
	ReturnFlags *ObjectImage `cbor:"5,keyasint,omitempty"`
}

// SignatureImage is a complete captured signature. Named entries are sorted
// by key so equal signatures produce identical images.
type SignatureImage struct {
	Positionals []CellImage    `cbor:"1,keyasint,omitempty"`
	Named       []NamedImage   `cbor:"2,keyasint,omitempty"`
	Metadata    *MetadataImage `cbor:"3,keyasint,omitempty"`
}

// Capture builds an image of sig's current contents.
func Capture(ip *vm.Interp, sig *vm.Signature) *SignatureImage {
	img := &SignatureImage{}
	sig.Cells(func(_ int, c vm.Cell) {
		img.Positionals = append(img.Positionals, captureCell(ip, c))
	})
	sig.NamedCells(func(key *vm.String, c vm.Cell) {
		img.Named = append(img.Named, NamedImage{Key: key.Text(), Cell: captureCell(ip, c)})
	})
	sort.Slice(img.Named, func(i, j int) bool { return img.Named[i].Key < img.Named[j].Key })

	tt, ss, af, rf := sig.TypeTuple(), sig.ShortSig(), sig.ArgFlags(), sig.ReturnFlags()
	if tt != nil || ss != nil || af != nil || rf != nil {
		img.Metadata = &MetadataImage{
			TypeTuple:   captureObject(ip, tt),
			ShortSig:    ss.Text(),
			HasShortSig: ss != nil,
			ArgFlags:    captureObject(ip, af),
			ReturnFlags: captureObject(ip, rf),
		}
	}
	return img
}

func captureCell(ip *vm.Interp, c vm.Cell) CellImage {
	switch c.Kind() {
	case vm.KindInt:
		return CellImage{Kind: ImageKindInt, Int: c.Int()}
	case vm.KindFloat:
		return CellImage{Kind: ImageKindFloat, Float: c.Float()}
	case vm.KindString:
		s := c.Str()
		if s == nil {
			return CellImage{Kind: ImageKindString, Null: true}
		}
		return CellImage{Kind: ImageKindString, Str: s.Text()}
	default:
		o := c.Obj()
		if o == nil {
			return CellImage{Kind: ImageKindObject, Null: true}
		}
		return CellImage{Kind: ImageKindObject, Object: captureObject(ip, o)}
	}
}

func captureObject(ip *vm.Interp, o *vm.Object) *ObjectImage {
	if o == nil {
		return nil
	}
	img := &ObjectImage{Class: o.ClassName()}
	switch class := o.Class(); class {
	case ip.IntegerClass:
		img.Int = class.GetInteger(ip, o)
	case ip.FloatClass:
		img.Float = class.GetNumber(ip, o)
	case ip.StringClass:
		img.Str = class.GetString(ip, o).Text()
	case ip.IntArrayClass:
		img.Ints, _ = ip.IntArrayElements(o)
	default:
		img.Opaque = true
	}
	return img
}

// Restore rebuilds a live signature from img inside ip. The caller owns the
// returned signature and frees it as usual.
func Restore(ip *vm.Interp, img *SignatureImage) *vm.Signature {
	sig := ip.NewSignature()
	for _, ci := range img.Positionals {
		restorePositional(ip, sig, ci)
	}
	for _, ni := range img.Named {
		restoreNamed(ip, sig, ni)
	}
	if md := img.Metadata; md != nil {
		var ss *vm.String
		if md.HasShortSig {
			ss = ip.Heap().Intern(md.ShortSig)
		}
		sig.SetMetadata(
			restoreObject(ip, md.TypeTuple),
			ss,
			restoreObject(ip, md.ArgFlags),
			restoreObject(ip, md.ReturnFlags),
		)
	}
	return sig
}

func restorePositional(ip *vm.Interp, sig *vm.Signature, ci CellImage) {
	switch ci.Kind {
	case ImageKindInt:
		sig.PushInteger(ci.Int)
	case ImageKindFloat:
		sig.PushFloat(ci.Float)
	case ImageKindString:
		sig.PushString(restoreString(ip, ci))
	case ImageKindObject:
		sig.PushObject(restoreObject(ip, ci.Object))
	}
}

func restoreNamed(ip *vm.Interp, sig *vm.Signature, ni NamedImage) {
	key := ip.Heap().Intern(ni.Key)
	switch ni.Cell.Kind {
	case ImageKindInt:
		sig.PushIntegerNamed(key, ni.Cell.Int)
	case ImageKindFloat:
		sig.PushFloatNamed(key, ni.Cell.Float)
	case ImageKindString:
		sig.PushStringNamed(key, restoreString(ip, ni.Cell))
	case ImageKindObject:
		sig.PushObjectNamed(key, restoreObject(ip, ni.Cell.Object))
	}
}

func restoreString(ip *vm.Interp, ci CellImage) *vm.String {
	if ci.Null {
		return nil
	}
	return ip.Heap().NewString(ci.Str)
}

func restoreObject(ip *vm.Interp, oi *ObjectImage) *vm.Object {
	if oi == nil {
		return nil
	}
	if oi.Opaque {
		if class := ip.LookupClass(oi.Class); class != nil {
			return ip.Heap().NewObject(class)
		}
		return nil
	}
	switch oi.Class {
	case "Integer":
		return ip.BoxInteger(oi.Int)
	case "Float":
		return ip.BoxFloat(oi.Float)
	case "String":
		return ip.BoxString(ip.Heap().NewString(oi.Str))
	case "IntArray":
		return ip.NewIntArray(oi.Ints)
	}
	if class := ip.LookupClass(oi.Class); class != nil {
		return ip.Heap().NewObject(class)
	}
	return nil
}
