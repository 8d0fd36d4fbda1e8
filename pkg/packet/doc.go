/*
Package packet defines the datagram model for the SSU protocol.

A Packet keeps its payload in mirrored raw-byte and string forms; the
string form is "<HEADER> <body>" with the header an ASCII token delimited
by the first space. A static dispatch table maps registered headers to
typed variants (control, fragment, DNS, internal HTTP request/response,
propagation), and Upgrade rehydrates a received generic packet into its
variant as a one-shot construction over the generic's bytes.

Re-serializing an upgraded packet reproduces the received datagram
byte-for-byte, which is what makes the transport's fragment reassembly and
correlation layers composable with the typed handlers above them.
*/
package packet
