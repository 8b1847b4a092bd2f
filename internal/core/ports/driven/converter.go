package driven

import "context"

// Converter transcodes an ebook file on disk into another format by
// invoking an external converter program. The contract mirrors the
// process contract: exit code 0 plus an output file means success; a
// nonzero exit surfaces the process's stderr as the error.
type Converter interface {
	// Convert reads inputPath and writes outputPath, embedding the given
	// title and optional author in the produced file's metadata. Honors
	// ctx cancellation by killing the child process.
	Convert(ctx context.Context, inputPath, outputPath, title, author string) error
}
