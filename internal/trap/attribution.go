// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package trap

import (
	"path/filepath"
	"reflect"
	"strings"
)

const autogeneratedFile = "<autogenerated>"

// DefaultFrameworkPackages are the package path prefixes whose frames never own a failure.
var DefaultFrameworkPackages = []string{
	"github.com/gofiber",
	"github.com/valyala/fasthttp",
	"github.com/spf13/cobra",
	"github.com/hashicorp/go-hclog",
}

var trapPackage = reflect.TypeFor[Trap]().PkgPath()

// Attribute returns the category owning f: the category declared by its error, or the code unit
// of the first frame that is not part of the runtime, of a framework or of this package, or the
// default category.
func (t *Trap) Attribute(f Failure) string {
	if category := errorCategory(f.Err); category != "" {
		return category
	}

	if t.stackAttribution {
		if unit, ok := t.firstOwner(errorFrames(f.Err)); ok {
			return unit
		}
		if unit, ok := t.firstOwner(f.Frames); ok {
			return unit
		}
	}

	return t.defaultCategory
}

func (t *Trap) firstOwner(frames []Frame) (string, bool) {
	for _, frame := range frames {
		if frame.File == autogeneratedFile || t.frameworkFile(frame.File) {
			continue
		}

		pkg, rest, ok := splitFunction(frame.Function)
		if !ok || t.ignoredPackage(pkg) || isShim(rest) || hasInlinedCallee(rest) {
			continue
		}

		return codeUnit(pkg, rest), true
	}
	return "", false
}

func (t *Trap) ignoredPackage(pkg string) bool {
	if pkg == trapPackage || isStandardLibrary(pkg) {
		return true
	}

	for _, prefix := range t.frameworks {
		prefix = strings.TrimSuffix(prefix, "/")
		if pkg == prefix || strings.HasPrefix(pkg, prefix+"/") {
			return true
		}
	}
	return false
}

// frameworkFile reports whether file is a source file of a framework module, as found in the module
// cache or in a vendor directory. Closures of framework functions inlined in the caller are named
// after the caller, so only their file tells where they come from.
func (t *Trap) frameworkFile(file string) bool {
	if file == "" {
		return false
	}

	file = "/" + strings.TrimPrefix(filepath.ToSlash(file), "/")
	for _, prefix := range t.frameworks {
		prefix = strings.Trim(prefix, "/")
		if strings.Contains(file, "/"+prefix+"/") || strings.Contains(file, "/"+prefix+"@") {
			return true
		}
	}
	return false
}

// splitFunction splits a qualified function name in its package path and the rest.
func splitFunction(function string) (string, string, bool) {
	lastSlash := strings.LastIndex(function, "/")
	dot := strings.Index(function[lastSlash+1:], ".")
	if function == "" || dot < 0 {
		return "", "", false
	}

	dot += lastSlash + 1
	return function[:dot], function[dot+1:], true
}

func isStandardLibrary(pkg string) bool {
	if pkg == "main" {
		return false
	}

	first, _, _ := strings.Cut(pkg, "/")
	return !strings.Contains(first, ".")
}

// isShim reports compiler generated wrappers: method values and go or defer statement thunks.
func isShim(rest string) bool {
	if strings.HasSuffix(rest, "-fm") {
		return true
	}

	elements := strings.Split(rest, ".")
	last := elements[len(elements)-1]
	return hasCounter(last, "gowrap") || hasCounter(last, "deferwrap")
}

// hasInlinedCallee reports names of closures created by a function inlined in its caller, such
// as "Handler.func1.(*Worker).Run.func2" or "Setup.Run.Wait.func1". The package in front of such
// a name is the caller's, not the one declaring the closure; the inlined callee has its own frame.
func hasInlinedCallee(rest string) bool {
	elements := strings.Split(strings.ReplaceAll(rest, "[...]", ""), ".")

	identifiers := 0
	afterClosure := false
	for index, element := range elements {
		switch {
		case isClosure(element) || hasCounter(element, "gowrap") || hasCounter(element, "deferwrap"):
			afterClosure = true
		case afterClosure:
			return true
		case index > 0 && strings.HasPrefix(element, "(*"):
			return true
		default:
			identifiers++
		}
	}
	return identifiers > 2
}

// codeUnit returns the type owning the function, or the package for plain functions.
func codeUnit(pkg, rest string) string {
	rest = strings.ReplaceAll(rest, "[...]", "")
	elements := strings.Split(rest, ".")

	first := elements[0]
	if strings.HasPrefix(first, "(*") && strings.HasSuffix(first, ")") {
		return pkg + "." + first[2:len(first)-1]
	}

	if len(elements) > 1 && first != "glob" && first != "init" && !isClosure(elements[1]) {
		return pkg + "." + first
	}

	return pkg
}

func isClosure(element string) bool {
	if element == "" || hasCounter(element, "func") {
		return true
	}
	return strings.Trim(element, "0123456789") == ""
}

// hasCounter reports whether element is name followed by a decimal counter.
func hasCounter(element, name string) bool {
	counter, found := strings.CutPrefix(element, name)
	return found && counter != "" && strings.Trim(counter, "0123456789") == ""
}
