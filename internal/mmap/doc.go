// Package mmap maps array files read-only into memory.
//
// Sorting outputs routinely hold multi-gigabyte arrays such as per-spike
// features. The model loader maps each one, parses the npy header from the
// front of the mapping and decodes the payload section in place:
//
//	m, err := mmap.Open("pc_features.npy")
//	if err != nil { ... }
//	defer m.Close()
//
//	payload, err := m.Section(offset, size, mmap.Sequential)
//
// Unix platforms use mmap(2) and madvise(2). On Windows the file is mapped
// with MapViewOfFile and advice is ignored.
package mmap
