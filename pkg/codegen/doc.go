// Package codegen compiles plugin manifests into an Android host project.
//
// # Overview
//
// A plugin declares bridge functions, Android permissions, services, Gradle
// dependencies and native sources. Compiling a set of plugins patches the
// host project so the native build picks all of that up, without anyone
// hand-editing the project:
//
//   - AndroidManifest.xml gains the permissions and services (merged in place)
//   - the app build script gains the dependency declarations (merged in place)
//   - plugin sources are copied into the source tree at the path their
//     package declaration implies
//   - a Kotlin registration file wiring every bridge function is regenerated
//
// # Architecture
//
// The compiler is split into one package per concern:
//
//  1. Manifest (pkg/codegen/manifest): XML merge of permissions and services
//  2. Gradle (pkg/codegen/gradle): dependency block merge, text preserving
//  3. Sources (pkg/codegen/sources): namespace-derived source placement
//  4. Registration (pkg/codegen/registration): Kotlin registration file
//  5. Artifacts (pkg/codegen/artifacts): atomic writes, file sets, diffs
//  6. Cache (pkg/codegen/cache): namespace lookups keyed by file path, size and mtime
//  7. Orchestrator (pkg/codegen/orchestrator): the compile/clean/diff cycle
//
// # Idempotence
//
// Every compile may run against files that were already compiled and then
// edited by hand. Merges therefore match existing entries instead of
// appending blindly:
//
//	Permissions   matched by android:name
//	Services      matched by android:name, children rebuilt deterministically
//	Meta-data     matched by android:name within a service
//	Dependencies  matched by the quoted coordinate, under any scope
//
// Compiling twice produces the same bytes as compiling once. The registration
// file is not merged: it is owned by the compiler and rewritten every run.
//
// # Usage
//
//	registry, err := plugins.NewLoader(dirs, log).LoadRegistry(ctx)
//	if err != nil {
//	    return err
//	}
//
//	compiler, err := orchestrator.NewCompiler(registry, cfg,
//	    orchestrator.WithLogger(log),
//	    orchestrator.WithMetrics(metrics),
//	)
//	if err != nil {
//	    return err
//	}
//
//	result, err := compiler.Compile(ctx)
//	if codegen.IsConflictError(err) {
//	    // nothing was written
//	}
//
// # Error Handling
//
// Errors are classified with sentinels and checked with the Is helpers:
//
//	ErrSetup             manifest or build script missing, nothing written
//	ErrConflict          registry conflicts, nothing written
//	ErrManifestParse     manifest unparseable, nothing written
//	ErrBuildScriptParse  build script unparseable, nothing written
//	ErrSourcePlacement   source without a package declaration, skipped
//
// Source placement problems are reported in CompilationResult.Warnings and do
// not fail the run. A source that cannot be written is reported once the rest
// of the run has completed.
package codegen
