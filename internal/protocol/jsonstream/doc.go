// Package jsonstream carves top-level JSON values out of an undelimited byte
// stream.
//
// A Framer is fed raw chunks as they arrive from a connection and returns the
// values completed so far, in stream order. Values may be split anywhere,
// including inside strings, numbers and escape sequences. Malformed input
// yields one FramingError per broken value or garbage run; the framer then
// resynchronises at the next '{' or '[' and keeps going.
//
// A Framer is not safe for concurrent use. Each connection owns one.
package jsonstream
