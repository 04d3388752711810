package source

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, records <-chan Record[string, *Document], errs <-chan error) ([]Record[string, *Document], []error) {
	t.Helper()

	var (
		gotRecords []Record[string, *Document]
		gotErrs    []error
	)

	timeout := time.After(time.Second)
	for records != nil || errs != nil {
		select {
		case rec, ok := <-records:
			if !ok {
				records = nil
				continue
			}
			gotRecords = append(gotRecords, rec)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			gotErrs = append(gotErrs, err)
		case <-timeout:
			t.Fatal("channels were not closed")
		}
	}

	return gotRecords, gotErrs
}

func readAll(t *testing.T, l *Lines) ([]Record[string, *Document], []error) {
	t.Helper()

	records, errs := l.Read(context.Background())
	return collect(t, records, errs)
}

func TestLines_Read(t *testing.T) {
	input := strings.Join([]string{
		`{"id":"a","n":1}`,
		``,
		`{"id":42}`,
		`not json`,
		`{"id":true}`,
		`{"other":"x"}`,
		`{"id":""}`,
		`{"id":{"nested":1}}`,
	}, "\n")

	l := &Lines{Reader: strings.NewReader(input), KeyField: "id"}
	records, errs := readAll(t, l)

	require.Len(t, records, 6)
	assert.Equal(t, "a", records[0].Key)
	assert.Equal(t, `{"id":"a","n":1}`, string(records[0].Value.Body))
	assert.Equal(t, records[0].Key, records[0].Value.Key)
	assert.Equal(t, "42", records[1].Key)
	assert.Equal(t, "true", records[2].Key)

	for _, rec := range records[3:] {
		_, err := uuid.Parse(rec.Key)
		assert.NoError(t, err, "documents without a usable key get a UUID")
	}
	assert.NotEqual(t, records[3].Key, records[4].Key)

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrInvalidJSON)

	var srcErr Error
	require.True(t, errors.As(errs[0], &srcErr))
	assert.Equal(t, 4, srcErr.Line)
}

func TestLines_NoKeyField(t *testing.T) {
	l := &Lines{Reader: strings.NewReader("{\"id\":\"a\"}\n{\"id\":\"a\"}\n")}
	records, errs := readAll(t, l)

	assert.Empty(t, errs)
	require.Len(t, records, 2)
	assert.NotEqual(t, records[0].Key, records[1].Key)
}

func TestLines_NilReader(t *testing.T) {
	l := &Lines{}
	records, errs := readAll(t, l)
	assert.Empty(t, records)
	assert.Empty(t, errs)
}

func TestLines_ContextCanceled(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 100; i++ {
		sb.WriteString(`{"id":"x"}` + "\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Lines{Reader: strings.NewReader(sb.String()), BufferSize: 1}
	records, errs := l.Read(ctx)

	<-records
	cancel()

	got, _ := collect(t, records, errs)
	assert.Less(t, len(got), 99)
}

func TestLines_BufferSize(t *testing.T) {
	l := &Lines{Reader: strings.NewReader(""), BufferSize: 5}
	records, errs := l.Read(context.Background())

	assert.Equal(t, 5, cap(records))
	assert.Equal(t, 5, cap(errs))
}
