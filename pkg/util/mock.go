package util

import "github.com/influxdata/influxdb-client-go/api/write"

// MockWriteAPI is the metrics sink used when no InfluxDB endpoint is
// configured. It satisfies api.WriteAPI and discards everything.
type MockWriteAPI struct{}

func (m *MockWriteAPI) WriteRecord(line string)         {}
func (m *MockWriteAPI) WritePoint(point *write.Point)   {}
func (m *MockWriteAPI) Flush()                          {}
func (m *MockWriteAPI) Close()                          {}
func (m *MockWriteAPI) Errors() <-chan error            { return nil }
