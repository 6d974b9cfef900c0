// Package modularity composes a host process from modules.
//
// A module is either compiled into the host or loaded at startup from a Go
// plugin that exports NewModule. The Catalog lists the modules, the Loader
// resolves plugin-backed entries and the Manager runs the lifecycle:
//
//	catalog := modularity.NewCatalog().
//	    AddModule(&files.Module{}).
//	    AddScanRegisterFromPath("./modules")
//
//	mgr := modularity.NewManager(catalog, modularity.WithManagerLogger(log))
//	c, err := mgr.Run(ctx)
//
// Run resolves every descriptor, calls RegisterTypes on each module in
// catalog order, freezes the registry and then calls OnInitialized in the
// same order. A module that fails is reported and skipped; the run only
// fails when a module breaks the registry protocol.
package modularity
