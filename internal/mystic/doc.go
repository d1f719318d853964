// Package mystic wraps the MSI Mystic Light SDK.
//
// The SDK is a non-reentrant native library. Every call into it goes through a
// single Handle owned by the SDK session, so concurrent use of devices and zones
// from many goroutines is safe but strictly serialized.
//
//	sdk, err := mystic.Open(`C:\Program Files\MSI\MysticLight_SDK.dll`)
//	if err != nil {
//	    return err
//	}
//	defer sdk.Close()
//
//	for _, dev := range sdk.DevicesFiltered(mystic.Names("MSI_MB")) {
//	    for _, zone := range dev.ZonesFiltered(nil) {
//	        state, err := zone.State()
//	        ...
//	    }
//	}
//
// Devices and zones are a snapshot taken at Open or Reload. Reload builds new
// collections; values obtained before it keep their capability data and still
// route writes through the live library.
package mystic
