// Package converter turns HTML into images through the wkhtmltoimage engine.
//
// The engine must only ever be touched from one OS thread, and its global
// init/deinit pair must run at most once per process. A [Runtime] owns the
// thread (an affinity executor) and the process-wide engine state; every
// [Converter] created from it funnels its work through that thread, so
// converters can be used from any number of goroutines.
//
//	rt := converter.NewRuntime(lib, converter.WithLogger(logger))
//	defer rt.Shutdown()
//
//	conv, err := rt.NewConverter(converter.WithSettings(img))
//	if err != nil {
//	    return err
//	}
//	defer conv.Close()
//
//	data, err := conv.ConvertHTML("<html><body>hi</body></html>")
//
// Each conversion builds fresh native settings and converter handles and
// always releases the converter handle, unregistering callbacks first.
// Progress is reported to subscribed [Observer] values; a panicking observer
// is logged and never unwinds into native code.
package converter
