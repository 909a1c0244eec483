// Package zsdb provides a compressed, read-mostly archive format that packs
// many named binary resources into one file and supports fast lookup by exact
// name or name prefix.
//
// This package re-exports the archive engine from the [core] subpackage and
// adds [Inspect], which summarizes a local or remote archive. The cmd/zsdb
// tool is built on it.
//
// An archive is one file:
//
//	[Header][Dictionary][Entry section][FileName section][Stream section]
//
// The index is sorted by name and closed by a fixed sentinel record that
// detects truncated or corrupted archives at open time. Each payload is stored
// raw or as its own zstd frame, whichever the configured ratio favors,
// optionally compressed against a shared dictionary.
//
// # Quick Start
//
// Build an archive from a directory:
//
//	res, err := zsdb.Build(ctx, "data.zsdb", "./data",
//	    zsdb.BuildWithPattern(`.*\.json`),
//	)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Files, res.Digest)
//
// Open it and look up entries:
//
//	r, err := zsdb.Open("data.zsdb")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	data, ok := r.Lookup("monster001.json")
//	name, data, ok := r.LookupPrefix("map", 3)
//
// # Remote archives
//
// An archive served over HTTP with Range support can be opened without
// downloading it, through the core/http byte source:
//
//	src, err := zsdbhttp.NewSource("https://cdn.example.com/data.zsdb")
//	if err != nil {
//	    return err
//	}
//	r, err := zsdb.New(src)
//
// Repeated opens of the same remote archive can be served from a disk block
// cache (core/cache/disk):
//
//	blocks, err := disk.New(cacheDir, disk.WithMaxBytes(256<<20))
//	if err != nil {
//	    return err
//	}
//	cached, err := blocks.Wrap(src)
//	if err != nil {
//	    return err
//	}
//	r, err := zsdb.New(cached)
//
// # Dictionaries
//
// Many small similar files compress better against a shared dictionary.
// [TrainDictionary] builds one from samples and [BuildWithDictionary] uses it.
//
// [core]: https://pkg.go.dev/github.com/meigma/zsdb/core
package zsdb
