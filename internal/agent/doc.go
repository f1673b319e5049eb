// Package agent contains the multi-agent runtime that translates
// natural-language requests into wallet operations. A routing step picks the
// agent best suited for the request, after which the chosen agent's tools run
// in a bounded generation loop until the model produces a final reply.
package agent
