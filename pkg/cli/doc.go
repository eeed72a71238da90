// Package cli provides the mobile-air command-line interface.
//
// # Overview
//
// The `mobile-air` command compiles the plugins of a project into its Android
// host: it merges manifest permissions and services, build script
// dependencies, copies native sources and regenerates the bridge
// registration file.
//
// # Commands
//
// compile: Merge every plugin into the project
//
//	mobile-air compile --project-root ./my-app
//
// diff: Show pending changes without writing (CI check)
//
//	mobile-air diff --exit-code
//
// list: Compile and print the generated files
//
//	mobile-air list
//
// clean: Remove the generated registration file
//
//	mobile-air clean
//
// watch: Recompile on plugin changes
//
//	mobile-air watch --plugin-dir plugins --plugin-dir vendor/plugins
//
// validate: Check manifests and conflicts without compiling
//
//	mobile-air validate
//
// # Configuration
//
// Settings come from MOBILE_AIR_* environment variables (see pkg/config).
// Persistent flags override them:
//
//	--project-root    MOBILE_AIR_PROJECT_ROOT
//	--plugin-dir      MOBILE_AIR_PLUGIN_DIRS
//	--manifest        MOBILE_AIR_MANIFEST_PATH
//	--build-script    MOBILE_AIR_BUILD_SCRIPT_PATH
//	--source-root     MOBILE_AIR_SOURCE_ROOT
//	--bridge-package  MOBILE_AIR_BRIDGE_PACKAGE
//	--max-workers     MOBILE_AIR_MAX_WORKERS
//	--log-level       MOBILE_AIR_LOG_LEVEL
//	--log-format      MOBILE_AIR_LOG_FORMAT
//	--metrics-file    MOBILE_AIR_METRICS_FILE
//
// # Exit Codes
//
// The command exits non-zero when compilation fails, when validation finds
// problems, or when diff --exit-code finds pending changes.
package cli
