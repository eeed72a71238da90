// Package plugins loads plugin manifests and holds them in an ordered registry.
//
// # Overview
//
// A plugin is a directory containing a manifest (plugin.yaml, plugin.yml or
// plugin.json) and optional native sources under android/src. The manifest
// declares bridge functions and the Android project contributions the
// compiler merges into the host project.
//
// # Manifest
//
//	name: camera
//	version: 1.2.0
//	bridge_functions:
//	  - name: Camera.Open
//	    android: com.example.camera.CameraFunctions.Open
//	    ios: CameraFunctions.open
//	    android_params: [activity]
//	android:
//	  permissions: [android.permission.CAMERA]
//	  dependencies:
//	    implementation: ["androidx.camera:camera-core:1.3.0"]
//	  services:
//	    - name: com.example.camera.CaptureService
//	      exported: false
//	      meta-data:
//	        - {name: com.example.AUTO_START, value: true}
//
// Dependency scopes keep their declaration order. Services accept both the
// meta_data and meta-data spellings.
//
// # Registry
//
// Registry keeps plugins in registration order and reports conflicts:
// duplicate plugin names and bridge function names declared by more than one
// plugin.
//
//	loader := plugins.NewLoader([]string{"plugins"}, log)
//	registry, err := loader.LoadRegistry(ctx)
//	if err != nil {
//		return err
//	}
//	for _, c := range registry.DetectConflicts() {
//		fmt.Println(c)
//	}
//
// Loader.Reload refreshes an existing registry in place, for watch mode.
//
// # Security Scan
//
// Validator flags dangerous Android permissions, exported services without an
// intent filter and credentials hardcoded in android/src:
//
//	issues, err := plugins.NewValidator(log).ScanForSecurityIssues(ctx, plugin)
//
// # Related Packages
//
//   - pkg/codegen/orchestrator: compiles registered plugins into the project
package plugins
