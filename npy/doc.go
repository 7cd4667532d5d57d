// Package npy reads and writes numpy .npy array files.
//
// Headers are parsed by a strict scanner that understands exactly the three
// keys numpy writes (descr, fortran_order, shape) for format versions 1.0,
// 2.0 and 3.0. Structured dtypes, object arrays and pickled payloads are
// rejected with [ErrFormat].
//
// Arrays are decoded into a caller-chosen element type:
//
//	times, err := npy.Load[float64]("spike_times.npy") // stored as <u8
//	if err != nil { ... }
//	fmt.Println(times.Shape, times.Data[:3])
//
// [ReadHeaderFile] inspects the declared shape without touching the payload,
// which is what the converter uses to decide whether a column vector can be
// squeezed.
package npy
