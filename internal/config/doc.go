// Package config loads hctx project files.
//
// The configuration is stored in hctx.json (or hctx.yaml) at the project
// root. Every field is optional.
//
// # Configuration File Structure
//
//	{
//	  "attributes": {
//	    "context": "hctx",
//	    "action": "hc-action",
//	    "effect": "hc-effect"
//	  },
//	  "import": {
//	    "path": "contexts/{name}.so",
//	    "concurrency": 4
//	  },
//	  "devtools": {
//	    "addr": "127.0.0.1:7331",
//	    "history": 256,
//	    "diagnostics": true
//	  },
//	  "watch": {
//	    "ignore": ["node_modules"],
//	    "debounce": "100ms"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Discover(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rt := hctx.New(doc, cfg.Runtime(logger))
package config
