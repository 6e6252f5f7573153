package rowstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
)

func (r *reader) All(ctx context.Context, options ...any) (result []Record, err error) {
	limiter, err := drainOptions(options...)
	if err != nil {
		return nil, err
	}
	result = make([]Record, 0)
	rowCount := 0
	for {
		rec, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			return result, nil
		} else if err != nil {
			return nil, err
		}
		rowCount++
		if limiter.LimitReached(rowCount) {
			return result, nil
		}
		result = append(result, rec)
	}
}

func (r *reader) Iterate(ctx context.Context, handler func(rec Record) (cont bool, err error)) error {
	cont := true
	for cont {
		rec, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}
		if cont, err = handler(rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) WriteJSON(ctx context.Context, writer io.Writer, options ...any) (err error) {
	limiter, err := drainOptions(options...)
	if err != nil {
		return err
	}
	if _, err = writer.Write([]byte("[")); err != nil {
		return err
	}
	jw := json.NewEncoder(writer)
	first := true
	rowCount := 0
	for err == nil {
		var rec Record
		if rec, err = r.Next(ctx); errors.Is(err, io.EOF) {
			err = nil
			break
		} else if err != nil {
			return err
		}
		rowCount++
		if limiter.LimitReached(rowCount) {
			break
		}
		if !first {
			_, err = writer.Write([]byte(","))
		}
		if err == nil {
			err = jw.Encode(rec)
			first = false
		}
	}
	if err == nil {
		_, err = writer.Write([]byte("]"))
	}
	return err
}
