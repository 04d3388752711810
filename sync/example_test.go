package sync_test

import (
	"context"
	"fmt"
	"log"
	stdsync "sync"
	"time"

	"github.com/MasterOfBinary/gocommit/buffer"
	"github.com/MasterOfBinary/gocommit/sync"
)

// Example_writer demonstrates basic usage of Writer for batching write operations.
func Example_writer() {
	// Track writes for the example
	var mu stdsync.Mutex
	written := make(map[string]string)

	writeFunc := func(ctx context.Context, data map[string]string) error {
		// In a real application, this would write to a database, cache, or API
		mu.Lock()
		defer mu.Unlock()
		for k, v := range data {
			written[k] = v
		}
		return nil
	}

	config := buffer.NewConstantConfig(&buffer.ConfigValues{
		Capacity: 10,
		MaxWait:  20 * time.Millisecond,
	})

	writer, err := sync.NewWriter(config, writeFunc)
	if err != nil {
		log.Fatal(err)
	}
	defer writer.Close(context.Background())

	var wg stdsync.WaitGroup
	for _, key := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			if err := writer.Set(context.Background(), key, "value-"+key); err != nil {
				log.Println(err)
			}
		}(key)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	fmt.Println(written["a"], written["b"], written["c"])
	// Output: value-a value-b value-c
}
