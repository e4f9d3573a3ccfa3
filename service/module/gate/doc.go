// Package gate implements asynchronous preparation of gated resources such
// as doors, lifts or barriers. Granting a gated resource files a Request;
// the grant is confirmed to the client only after the request is opened.
package gate
