// Package collector discovers and reads the source files of one language
// under a root directory.
//
// A scan walks the tree, prunes excluded directory names and ignore-file
// patterns, keeps regular files with the requested extension and reads them
// on a bounded worker pool:
//
//	c := collector.New(logger)
//	res, err := c.Collect(ctx, "/path/to/repo", ".py", collector.Options{})
//	if err != nil {
//	    return err
//	}
//	for _, f := range res.Files {
//	    fmt.Println(f.Path, len(f.Contents))
//	}
//
// # Failure policy
//
// A missing or non-directory root is an error. Individual files that cannot
// be read (permissions, invalid UTF-8, over the size limit) are logged and
// listed in Result.Skipped; the scan always continues.
//
// # Ordering
//
// Files are returned sorted by path, independent of walk order and of the
// order in which concurrent reads complete.
package collector
