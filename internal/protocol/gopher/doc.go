// Package gopher implements the wire format of the Gopher protocol subset
// served by Burrow.
//
// # Exchange
//
// A client opens a TCP connection and sends a single selector line:
//
//	<selector>\r\n
//
// The server answers with a body followed by the terminator and closes the
// connection:
//
//	<body>\r\n.\r\n
//
// # Menus
//
// When the selector names a directory, the body is a menu. Each entry is one
// line with four tab-separated fields, the first prefixed by a one-byte item
// type:
//
//	<type><display>\t<selector>\t<host>\t<port>\r\n
//
// Only two item types are produced: '0' for a text file and '1' for a
// directory. Search, binary and other item types are not supported.
package gopher
