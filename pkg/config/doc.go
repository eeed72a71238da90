// Package config provides application configuration management from environment variables.
//
// # Overview
//
// Configuration is read with caarlos0/env into tagged structs and validated
// once at startup. Every setting has a default, so a project laid out the
// standard way needs no environment at all.
//
// # Configuration Structure
//
// Project layout (relative paths resolve against the project root):
//
//	MOBILE_AIR_PROJECT_ROOT="."
//	MOBILE_AIR_PLUGIN_DIRS="plugins"                       # comma separated
//	MOBILE_AIR_MANIFEST_PATH="app/src/main/AndroidManifest.xml"
//	MOBILE_AIR_BUILD_SCRIPT_PATH="app/build.gradle.kts"
//	MOBILE_AIR_SOURCE_ROOT="app/src/main/java"
//	MOBILE_AIR_BRIDGE_PACKAGE="com.mobileair.bridge.plugins"
//	MOBILE_AIR_REGISTRY_TYPE="com.mobileair.bridge.BridgeFunctionRegistry"
//
// Compiler settings:
//
//	MOBILE_AIR_MAX_WORKERS="4"
//	MOBILE_AIR_CACHE_ENTRIES="4096"
//	MOBILE_AIR_WATCH_DELAY="500ms"
//
// Observability settings:
//
//	MOBILE_AIR_LOG_LEVEL="info"
//	MOBILE_AIR_LOG_FORMAT="text"          # text or json
//	MOBILE_AIR_METRICS_FILE=""            # Prometheus textfile, empty disables
//	MOBILE_AIR_OTEL_ENDPOINT=""           # OTLP gRPC endpoint, empty disables
//	MOBILE_AIR_OTEL_SERVICE_NAME="mobile-air"
//	MOBILE_AIR_OTEL_INSECURE="false"
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	manifest := cfg.Project.Resolve(cfg.Project.ManifestPath)
package config
