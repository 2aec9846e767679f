// Package assemblenjk plugs the njk template engine into an app.App.
//
//	site, _ := assemblenjk.NewApp()
//	_ = site.Use(assemblenjk.Plugin(nil))
//	_ = site.AddFilter("shout", func(in, _ any) (any, error) {
//		return strings.ToUpper(fmt.Sprint(in)), nil
//	})
//
// After installation, views with the .njk extension render through the
// engine, and Helper/Helpers/AsyncHelper/AsyncHelpers register template
// filters in addition to the host's own helper bookkeeping.
package assemblenjk
