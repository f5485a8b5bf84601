// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package poi implements the points-of-interest index: an ordered
// sequence of classified offsets and spans within a firmware image.
package poi

// Type is the closed set of POI classifications.
type Type int

const (
	Unknown Type = iota
	String
	Array
	Structure
	Function
	GenericPointer
	DataPointer
	UninitDataPointer
	FunctionPointer
	ArrayPointer
	StringPointer
	PointerPointer
	StructurePointer
	StructArrayPointer
	NullptrOrValue
)

func (t Type) String() string {
	switch t {
	case String:
		return "STRING"
	case Array:
		return "ARRAY"
	case Structure:
		return "STRUCTURE"
	case Function:
		return "FUNCTION"
	case GenericPointer:
		return "GENERIC_POINTER"
	case DataPointer:
		return "DATA_POINTER"
	case UninitDataPointer:
		return "UNINIT_DATA_POINTER"
	case FunctionPointer:
		return "FUNCTION_POINTER"
	case ArrayPointer:
		return "ARRAY_POINTER"
	case StringPointer:
		return "STRING_POINTER"
	case PointerPointer:
		return "POINTER_POINTER"
	case StructurePointer:
		return "STRUCTURE_POINTER"
	case StructArrayPointer:
		return "STRUCT_ARRAY_POINTER"
	case NullptrOrValue:
		return "NULLPTR_OR_VALUE"
	default:
		return "UNKNOWN"
	}
}

// IsPointerKind reports whether t is one of the pointer-ish types
// that the structure-array signature classifier treats as "pointing
// at another POI" (§4.6's POINTER_POINTER/typed-pointer checks).
func (t Type) IsPointerKind() bool {
	switch t {
	case GenericPointer, DataPointer, UninitDataPointer, FunctionPointer,
		ArrayPointer, StringPointer, StructurePointer, StructArrayPointer:
		return true
	default:
		return false
	}
}

// POI is one point-of-interest record.
type POI struct {
	Offset uint64
	Count  uint64
	Type   Type

	// NBMembers and Signature are only meaningful for
	// StructurePointer: NBMembers is the number of members per
	// structure element, and Signature holds one Type tag per
	// member.
	NBMembers int
	Signature []Type

	next *POI
}

// List is a singly linked, append-ordered sequence of POIs.
type List struct {
	head, tail *POI
	count      int
}

// Append unconditionally inserts poi at the tail of the list.
func (l *List) Append(p *POI) {
	p.next = nil
	if l.tail == nil {
		l.head = p
		l.tail = p
	} else {
		l.tail.next = p
		l.tail = p
	}
	l.count++
}

// Add is shorthand for constructing and appending a POI with no
// signature.
func (l *List) Add(offset, count uint64, typ Type) *POI {
	p := &POI{Offset: offset, Count: count, Type: typ}
	l.Append(p)
	return p
}

// AddUnique appends a POI unless one with the same offset already
// exists anywhere in the list.
func (l *List) AddUnique(offset, count uint64, typ Type) *POI {
	for p := l.head; p != nil; p = p.next {
		if p.Offset == offset {
			return p
		}
	}
	return l.Add(offset, count, typ)
}

// AddUniqueSorted inserts p in strictly-increasing-offset order,
// discarding it (returning false) if an entry with the same offset
// already exists.
func (l *List) AddUniqueSorted(p *POI) bool {
	p.next = nil
	if l.head == nil {
		l.head = p
		l.tail = p
		l.count++
		return true
	}
	if p.Offset == l.head.Offset {
		return false
	}
	if p.Offset < l.head.Offset {
		p.next = l.head
		l.head = p
		l.count++
		return true
	}
	prev := l.head
	for cur := l.head.next; cur != nil; cur = cur.next {
		if cur.Offset == p.Offset {
			return false
		}
		if cur.Offset > p.Offset {
			break
		}
		prev = cur
	}
	p.next = prev.next
	prev.next = p
	if p.next == nil {
		l.tail = p
	}
	l.count++
	return true
}

// AddStructureArray is like AddUnique, but also records the member
// count and signature vector of a structure-array POI; it rejects
// the insert (returning nil) if an entry at the same offset already
// exists.
func (l *List) AddStructureArray(offset, count uint64, nbMembers int, signature []Type) *POI {
	for p := l.head; p != nil; p = p.next {
		if p.Offset == offset {
			return nil
		}
	}
	sig := make([]Type, len(signature))
	copy(sig, signature)
	p := &POI{
		Offset:    offset,
		Count:     count,
		Type:      StructurePointer,
		NBMembers: nbMembers,
		Signature: sig,
	}
	l.Append(p)
	return p
}

// Count returns the number of entries in the list.
func (l *List) Count() int { return l.count }

// Head returns the first POI, or nil if the list is empty.
func (l *List) Head() *POI { return l.head }

// Next returns the POI following p, or nil.
func (p *POI) Next() *POI {
	if p == nil {
		return nil
	}
	return p.next
}

// IsInPOI reports whether offset falls within (for STRING, an exact
// match; for ARRAY, a half-open range of p.Count pointer-sized
// elements starting at p.Offset) some POI's span. elemSize is the
// element stride of an ARRAY POI (the pointer size in use).
func IsInPOI(p *POI, offset uint64, elemSize uint64) bool {
	switch p.Type {
	case String:
		return offset == p.Offset
	case Array:
		end := p.Offset + p.Count*elemSize
		return offset >= p.Offset && offset < end
	default:
		return offset == p.Offset
	}
}

// Find returns the first POI in the list with the given offset, or
// nil.
func (l *List) Find(offset uint64) *POI {
	for p := l.head; p != nil; p = p.next {
		if p.Offset == offset {
			return p
		}
	}
	return nil
}

// FindType returns the first POI in the list with the given offset
// and type, or nil.
func (l *List) FindType(offset uint64, typ Type) *POI {
	for p := l.head; p != nil; p = p.next {
		if p.Offset == offset && p.Type == typ {
			return p
		}
	}
	return nil
}

// Slice returns every POI in the list, in order, as a plain slice —
// useful for the refiner, which needs random access into an
// otherwise-singly-linked list.
func (l *List) Slice() []*POI {
	out := make([]*POI, 0, l.count)
	for p := l.head; p != nil; p = p.next {
		out = append(out, p)
	}
	return out
}
