// Package batch checks many targets from a YAML manifest:
//
//	targets:
//	  - name: web
//	    output: build/web.digest
//	    inputs: [web/index.html, web/app.js]
//
// A manifest may hold several "---" separated documents; their targets
// are concatenated in order. Every target must resolve to a distinct
// output key, because checks on the same key are not safe to run at
// the same time. Results keep manifest order.
package batch
