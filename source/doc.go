// Package source contains producer-side plumbing for feeding a
// buffer.Buffer, including:
//
// - Channel: For pumping records from a channel into a buffer from a pool of workers
// - Lines: For reading newline-delimited JSON documents keyed by one of their fields
//
// Lines returns a data channel and an error channel; callers must drain
// both until they are closed.
//
// Basic usage:
//
//	lines := &source.Lines{Reader: os.Stdin, KeyField: "id"}
//	records, errs := lines.Read(ctx)
//	go func() {
//		for err := range errs {
//			log.Print(err)
//		}
//	}()
//
//	pump := &source.Channel[string, *source.Document]{Input: records, Workers: 4}
//	if err := pump.Run(ctx, b); err != nil {
//		return err
//	}
package source
