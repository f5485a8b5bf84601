// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package analysis coordinates the individual components (entropy
// classifier, endianness detector, POI indexers, candidate generator
// and refiner, UDS locator) into the tool's two top-level workflows:
// finding an unknown base address, and mining coherent structures once
// a base address is known. It replaces the original tool's
// process-wide globals with an explicit struct threaded through every
// call.
package analysis

import (
	"context"
	"fmt"

	"github.com/datawire/dlib/dlog"

	"github.com/binbloom-go/binbloom/lib/binaddr"
	"github.com/binbloom-go/binbloom/lib/binbuf"
	"github.com/binbloom-go/binbloom/lib/candidate"
	"github.com/binbloom-go/binbloom/lib/containers"
	"github.com/binbloom-go/binbloom/lib/endian"
	"github.com/binbloom-go/binbloom/lib/indexer"
	"github.com/binbloom-go/binbloom/lib/memregion"
	"github.com/binbloom-go/binbloom/lib/poi"
	"github.com/binbloom-go/binbloom/lib/uds"
)

// Config parameterizes an Analysis.
type Config struct {
	Arch   binbuf.Arch
	Endian binbuf.Endianness // EndianUnknown requests auto-detection
	Align  uint64
	Deep   bool
	// Workers bounds the candidate refiner's goroutine fan-out.
	Workers int
	// Symbols, if non-nil, names known function offsets, taken from
	// a symbols file; it short-circuits the FUNCTION POI fallback
	// heuristic and the UNINIT_DATA/FUNCTION_POINTER disambiguation
	// in pointer indexing.
	Symbols map[uint64]string
}

// Analysis holds the firmware image and the state accumulated by
// running its components against it.
type Analysis struct {
	Image   []byte
	Config  Config
	Regions *memregion.Table
	Endian  binbuf.Endianness
	POIs    *poi.List
}

// New classifies img's memory regions (the one component every
// workflow needs up front) and returns an Analysis ready to run either
// BaseAddress or CoherentData.
func New(img []byte, cfg Config) *Analysis {
	regions := memregion.NewTable(memregion.Classify(img, memregion.DefaultThresholds))
	return &Analysis{
		Image:   img,
		Config:  cfg,
		Regions: regions,
		Endian:  cfg.Endian,
		POIs:    &poi.List{},
	}
}

// BaseAddressResult is the outcome of BaseAddress.
type BaseAddressResult struct {
	Endian    binbuf.Endianness
	PtrBase   binaddr.Address
	Refined   candidate.Result
	POICount  int
}

// BaseAddress runs the generator/refiner pipeline (§4.5, §4.7, §4.8)
// to find the most likely load address of an image whose base address
// is not already known.
func (a *Analysis) BaseAddress(ctx context.Context) (BaseAddressResult, error) {
	if len(a.Image) < a.Config.Arch.Size() {
		return BaseAddressResult{}, fmt.Errorf("image is smaller than one %v pointer (%d bytes)", a.Config.Arch, a.Config.Arch.Size())
	}

	if a.Endian == binbuf.EndianUnknown {
		det := endian.Detect(ctx, a.Image, a.Config.Arch)
		a.Endian = det.Endian
		dlog.Infof(ctx, "detected endianness %v, pointer-base hint 0x%x", det.Endian, det.PtrBase)
	}

	indexer.IndexStrings(a.Image, a.POIs)
	indexer.IndexArrays(a.Image, a.Config.Arch, a.Endian, a.POIs)
	if !poiTypes(a.POIs).Has(poi.String) {
		indexer.IndexFunctions(a.Image, a.Config.Arch, a.Regions, a.Config.Symbols, a.POIs)
	}

	candidates := candidate.ComputeCandidates(ctx, a.Image, candidate.GeneratorConfig{
		Arch:       a.Config.Arch,
		Endian:     a.Endian,
		Align:      a.Config.Align,
		PtrAligned: true,
		Deep:       a.Config.Deep,
	}, a.POIs)
	if len(candidates) == 0 {
		return BaseAddressResult{}, fmt.Errorf("no base-address candidates found")
	}

	refined := candidate.Refine(ctx, a.Image, candidates, a.POIs, candidate.RefinerConfig{
		Arch:    a.Config.Arch,
		Endian:  a.Endian,
		Regions: a.Regions,
		Symbols: a.Config.Symbols,
		Workers: a.Config.Workers,
	})

	return BaseAddressResult{
		Endian:   a.Endian,
		PtrBase:  binaddr.Address(refined.Winner.Candidate.Address),
		Refined:  refined,
		POICount: a.POIs.Count(),
	}, nil
}

// poiTypes collects the distinct POI types present in list, used to
// decide whether the FUNCTION-POI fallback indexer is needed.
func poiTypes(list *poi.List) containers.Set[poi.Type] {
	seen := containers.NewSet[poi.Type]()
	for p := list.Head(); p != nil; p = p.Next() {
		seen.Insert(p.Type)
	}
	return seen
}

// CoherentDataResult is the outcome of CoherentData.
type CoherentDataResult struct {
	Pointers      *poi.List
	Strings       *poi.List
	PointerArrays *poi.List
	Structures    *poi.List
	UDS           uds.Finding
	UDSFound      bool
	UDSAddress    binaddr.Address
}

// CoherentData runs the full POI pipeline at a known base address
// (§4.6, §4.9): pointer and string indexing, pointer reclassification
// against the string index, pointer-array and structure-array
// indexing, and finally the UDS locator.
func (a *Analysis) CoherentData(ctx context.Context, base binaddr.Address) (CoherentDataResult, error) {
	if len(a.Image) < a.Config.Arch.Size() {
		return CoherentDataResult{}, fmt.Errorf("image is smaller than one %v pointer (%d bytes)", a.Config.Arch, a.Config.Arch.Size())
	}
	if a.Endian == binbuf.EndianUnknown {
		return CoherentDataResult{}, fmt.Errorf("endianness must be known (detected or forced) before locating coherent data")
	}

	strings := &poi.List{}
	indexer.IndexStrings(a.Image, strings)

	pointers := &poi.List{}
	indexer.IndexPointers(a.Image, a.Config.Arch, a.Endian, uint64(base), a.Regions, a.Config.Symbols, pointers)

	// Reclassify pointers that target a STRING POI: this takes
	// priority over the region-based typing IndexPointers already
	// applied, since a string literal sits in INIT_DATA/CODE like
	// anything else but is far more informative to report as such.
	reclassifyStringPointers(a.Image, a.Config.Arch, a.Endian, uint64(base), pointers, strings)

	// IndexPointerArrays appends its ARRAY_POINTER findings directly
	// onto the list it scans, so the newly appended tail (everything
	// past preExisting) is exactly the set of array POIs found.
	preExisting := pointers.Count()
	indexer.IndexPointerArrays(pointers, a.Config.Arch)
	pointerArrays := &poi.List{}
	for i, p := 0, pointers.Head(); p != nil; p = p.Next() {
		if i >= preExisting {
			pointerArrays.Append(&poi.POI{Offset: p.Offset, Count: p.Count, Type: p.Type})
		}
		i++
	}

	sorted := &poi.List{}
	for p := pointers.Head(); p != nil; p = p.Next() {
		sorted.AddUniqueSorted(&poi.POI{Offset: p.Offset, Count: p.Count, Type: p.Type, NBMembers: p.NBMembers, Signature: p.Signature})
	}

	structures := &poi.List{}
	indexer.IndexStructureArrays(a.Image, a.Config.Arch, a.Endian, uint64(base), sorted)
	for p := sorted.Head(); p != nil; p = p.Next() {
		if p.Type == poi.StructurePointer {
			structures.Append(&poi.POI{Offset: p.Offset, Count: p.Count, Type: p.Type, NBMembers: p.NBMembers, Signature: p.Signature})
		}
	}

	udsFinding := uds.Locate(a.Image, a.Config.Arch, structures)
	result := CoherentDataResult{
		Pointers:      pointers,
		Strings:       strings,
		PointerArrays: pointerArrays,
		Structures:    structures,
		UDS:           udsFinding.Val,
		UDSFound:      udsFinding.OK,
	}
	if udsFinding.OK {
		result.UDSAddress = binaddr.Address(udsFinding.Val.Address(a.Config.Arch, uint64(base)))
		dlog.Infof(ctx, "UDS database: %d distinct RIDs at %v in %v", udsFinding.Val.Count, result.UDSAddress, uds.Declare(udsFinding.Val.Struct, a.Config.Arch))
	}
	return result, nil
}

func reclassifyStringPointers(img []byte, arch binbuf.Arch, endian binbuf.Endianness, base uint64, pointers, strings *poi.List) {
	for p := pointers.Head(); p != nil; p = p.Next() {
		v, err := binbuf.ReadPointer(img, int(p.Offset), arch, endian)
		if err != nil || v < base {
			continue
		}
		if strings.FindType(v-base, poi.String) != nil {
			p.Type = poi.StringPointer
		}
	}
}

