package es

import "log/slog"

// Version is the position of an event within its aggregate stream. The first
// event has version 1; an aggregate at version 0 has no persisted events.
type Version uint64

func (v Version) Uint64() uint64                       { return uint64(v) }
func (v Version) Next() Version                        { return v + 1 }
func (v Version) SlogAttr() slog.Attr                  { return v.SlogAttrWithKey("version") }
func (v Version) SlogAttrWithKey(key string) slog.Attr { return slog.Uint64(key, uint64(v)) }
