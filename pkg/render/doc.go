// Package render runs single HTML-to-image renders with caching.
//
// A [Runner] sits between the entry points (CLI and HTTP API) and the
// converter runtime. Each [Request] gets its own converter, so callers can
// render concurrently with different settings; the runtime serializes the
// actual engine work.
//
//	runner := render.NewRunner(rt, cache, nil, logger)
//	res, err := runner.Render(ctx, render.Request{
//	    HTML:     "<h1>hello</h1>",
//	    Settings: img,
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Info.Format, res.Info.Width, res.Info.Height)
//
// Only inline HTML is cached: the output of a URL or file input can change
// without its name changing.
package render
