// Package influxdb records homectl time-series data in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library and plugs into the
// core in two places:
//   - as a registry.Observer, writing one integration_dispatch point per
//     lifecycle or dispatch call (op, integration, kind, outcome, duration)
//   - as an event.Sink, writing one device_state point per device refresh
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	reg := registry.New(sender, registry.WithObserver(client))
//	fwd := event.NewForwarder(ch, logger, client)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes never block the caller;
// batch failures are reported through SetOnError.
package influxdb
