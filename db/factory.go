package db

import "fmt"

// OpenLocalStore opens the local store selected by driver.
// Defaults to sqlite when unset.
func OpenLocalStore(driver Driver, path string) (Store, error) {
	if driver == "" {
		driver = DriverSQLite
	}
	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		return NewSQLiteStore(path)
	case DriverBolt:
		return NewBoltStore(path)
	default:
		return nil, fmt.Errorf("unknown local store driver %s", driver)
	}
}
