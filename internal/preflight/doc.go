// Package preflight provides readiness checks for the executables and
// filesystem paths upscaler depends on.
//
// These checks run in two contexts:
//   - `upscaler run` and `upscaler split` call RunAll before extracting any
//     frames. A failed check aborts the job before the workspace fills up.
//   - `upscaler doctor` renders every check, plus CheckSystemDeps, as a table.
package preflight
