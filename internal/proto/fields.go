package proto

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Message builds a Struct from string fields.
func Message(fields map[string]string) *structpb.Struct {
	s := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(fields))}
	for k, v := range fields {
		s.Fields[k] = structpb.NewStringValue(v)
	}
	return s
}

// String returns the string field key of s, or "" when absent or not a string.
func String(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[key].GetStringValue()
}

// Time parses an RFC 3339 field; the zero time is returned on any problem.
func Time(s *structpb.Struct, key string) time.Time {
	t, err := time.Parse(time.RFC3339, String(s, key))
	if err != nil {
		return time.Time{}
	}
	return t
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
