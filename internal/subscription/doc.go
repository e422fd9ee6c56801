// Package subscription tracks which markets the client wants live data for.
//
// The registry records intent only; it never touches the wire. The
// connection manager consults it to send subscribe frames when connected
// and to replay the full set after a reconnect.
package subscription
