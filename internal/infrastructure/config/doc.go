// Package config loads the package manager configuration.
//
// Values come from three layers, later layers winning:
//
//  1. Built-in defaults
//  2. The device config file (PM_CONFIG_FILE, default /etc/package.cfg)
//  3. Environment variables
//
// The device config file is the JSON document written by the image build:
//
//	{
//	  "appPresetPath": "/system/app",
//	  "appInstalledPath": "/data/app",
//	  "appDataPath": "/data/data"
//	}
//
// It is decoded with a YAML decoder, so YAML files are accepted too.
//
// Environment Variables:
//   - PM_HOST, PM_PORT, PM_REQUEST_TIMEOUT
//   - PM_CONFIG_FILE, PM_PRESET_PATH, PM_INSTALLED_PATH, PM_DATA_PATH, PM_PACKAGE_LIST
//   - PM_SCAN_INSTALLED_ON_BOOT, PM_RECONCILE, PM_OWNER_ID_BASE
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
