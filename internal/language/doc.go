// Package language defines per-language policies for the annotation pipeline.
//
// A Policy is a value object: comment syntax, block-boundary patterns, the
// duplicate-insertion rule, file extensions and the structural keyword list
// used by the coarse content check. Every pipeline stage depends only on a
// Policy, so adding a language means adding one policy and registering it:
//
//	reg := language.Default()
//	reg.Register(myPolicy)
//	p, ok := reg.ForPath("orders.prg")
//
// Built-in policies: vfp (Visual FoxPro), csharp, go.
package language
