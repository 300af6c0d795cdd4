// Package watch keeps an engine's rules in step with their sources.
//
// DirWatcher reloads when rule files in a directory change, after a quiet
// period so an editor's burst of writes causes one reload. Resyncer
// reloads on a cron schedule, typically from a store.Store shared by
// several processes.
//
// Both call a ReloadFunc. DirReloader and StoreReloader build one that
// parses every source and swaps the whole rule set into an engine with
// Engine.Replace; a failed reload leaves the previous rules in place.
//
//	w, err := watch.NewDirWatcher("rules/", watch.DirReloader(engine, "rules/"))
//	go w.Run(ctx)
package watch
