// Package analyzer performs best-effort static dependency analysis over
// Go source, in the spirit of spec.md §4.1: given a task type's Run/Clean
// method bodies, find references to other package-level task variables
// and follow same-receiver helper methods transitively.
//
// Go's static type system removes the need for this analysis to be the
// sole source of truth (spec.md §9 explains the tradeoff): task.go's
// StaticDependencies interface lets a task declare its edges directly,
// and anything not declared is still honored at runtime when a task
// calls Get on an undeclared dependency (recorded as a runtime
// dependency, never an error). Analyze is therefore a diagnostic
// cross-check only: its report does not feed the scheduling graph.
package analyzer

import (
	"fmt"
	"go/ast"
	"go/types"
	"sort"

	"golang.org/x/tools/go/packages"
)

// Edge is a discovered dependency between two package-level task
// variables, named by their Go identifiers.
type Edge struct {
	From string
	To   string
}

// Report is the result of analyzing one package for task dependencies.
type Report struct {
	// TaskVars lists every package-level variable whose type implements
	// the taski.Task interface, sorted by name.
	TaskVars []string
	// Edges lists every statically discovered reference from one task
	// variable's Run/Clean body (transitively through same-receiver
	// helper methods) to another task variable.
	Edges []Edge
}

// Analyze loads the Go package at pkgPattern (a package path or pattern
// accepted by golang.org/x/tools/go/packages, e.g. "./..." or an import
// path) and walks every package-level task variable's Run/Clean methods
// for references to other task variables in the same package.
//
// taskPkgPath is the import path of the package declaring the Task
// interface (normally "github.com/ahogappa/taski"); it is loaded
// alongside pkgPattern so the Task interface's method set, including its
// *Context parameter type, is resolved precisely rather than guessed.
func Analyze(pkgPattern, taskPkgPath string) (*Report, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes | packages.NeedTypesInfo |
			packages.NeedSyntax | packages.NeedImports | packages.NeedDeps,
	}
	pkgs, err := packages.Load(cfg, pkgPattern, taskPkgPath)
	if err != nil {
		return nil, fmt.Errorf("analyzer: load: %w", err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		return nil, fmt.Errorf("analyzer: %s: type errors while loading", pkgPattern)
	}

	var target, taskPkg *packages.Package
	for _, p := range pkgs {
		switch p.PkgPath {
		case taskPkgPath:
			taskPkg = p
		default:
			target = p
		}
	}
	if target == nil || taskPkg == nil {
		return nil, fmt.Errorf("analyzer: could not resolve both %q and %q", pkgPattern, taskPkgPath)
	}

	taskIface, err := taskInterface(taskPkg)
	if err != nil {
		return nil, err
	}

	taskVars := findTaskVars(target, taskIface)
	if len(taskVars) == 0 {
		return &Report{}, nil
	}

	methodsByType := indexMethods(target)

	rep := &Report{}
	for name := range taskVars {
		rep.TaskVars = append(rep.TaskVars, name)
	}
	sort.Strings(rep.TaskVars)

	seenEdge := make(map[Edge]struct{})
	for name, v := range taskVars {
		typeName := namedTypeName(v.Type())
		visited := make(map[string]bool)
		var walk func(methodName string)
		walk = func(methodName string) {
			if visited[methodName] {
				return
			}
			visited[methodName] = true
			decl, ok := methodsByType[typeName][methodName]
			if !ok || decl.Body == nil {
				return
			}
			ast.Inspect(decl.Body, func(n ast.Node) bool {
				id, ok := n.(*ast.Ident)
				if !ok {
					return true
				}
				obj := target.TypesInfo.Uses[id]
				if obj == nil {
					return true
				}
				switch o := obj.(type) {
				case *types.Var:
					if o.Parent() != target.Types.Scope() {
						return true
					}
					if depName, ok := reverseLookup(taskVars, o); ok && depName != name {
						e := Edge{From: name, To: depName}
						if _, dup := seenEdge[e]; !dup {
							seenEdge[e] = struct{}{}
							rep.Edges = append(rep.Edges, e)
						}
					}
				case *types.Func:
					sig, ok := o.Type().(*types.Signature)
					if !ok || sig.Recv() == nil {
						return true
					}
					if namedTypeName(sig.Recv().Type()) == typeName {
						walk(o.Name())
					}
				}
				return true
			})
		}
		walk("Run")
		walk("Clean")
	}

	sort.Slice(rep.Edges, func(i, j int) bool {
		if rep.Edges[i].From != rep.Edges[j].From {
			return rep.Edges[i].From < rep.Edges[j].From
		}
		return rep.Edges[i].To < rep.Edges[j].To
	})

	return rep, nil
}

func taskInterface(taskPkg *packages.Package) (*types.Interface, error) {
	obj := taskPkg.Types.Scope().Lookup("Task")
	if obj == nil {
		return nil, fmt.Errorf("analyzer: %s: Task type not found", taskPkg.PkgPath)
	}
	named, ok := obj.Type().(*types.Named)
	if !ok {
		return nil, fmt.Errorf("analyzer: %s: Task is not a named type", taskPkg.PkgPath)
	}
	iface, ok := named.Underlying().(*types.Interface)
	if !ok {
		return nil, fmt.Errorf("analyzer: %s: Task is not an interface", taskPkg.PkgPath)
	}
	return iface, nil
}

func findTaskVars(pkg *packages.Package, iface *types.Interface) map[string]*types.Var {
	out := make(map[string]*types.Var)
	scope := pkg.Types.Scope()
	for _, name := range scope.Names() {
		v, ok := scope.Lookup(name).(*types.Var)
		if !ok {
			continue
		}
		if types.Implements(v.Type(), iface) || types.Implements(types.NewPointer(v.Type()), iface) {
			out[name] = v
		}
	}
	return out
}

func reverseLookup(vars map[string]*types.Var, target *types.Var) (string, bool) {
	for name, v := range vars {
		if v == target {
			return name, true
		}
	}
	return "", false
}

func indexMethods(pkg *packages.Package) map[string]map[string]*ast.FuncDecl {
	out := make(map[string]map[string]*ast.FuncDecl)
	for _, f := range pkg.Syntax {
		for _, decl := range f.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv == nil || len(fn.Recv.List) == 0 {
				continue
			}
			recvType := recvTypeName(fn.Recv.List[0].Type)
			if recvType == "" {
				continue
			}
			if out[recvType] == nil {
				out[recvType] = make(map[string]*ast.FuncDecl)
			}
			out[recvType][fn.Name.Name] = fn
		}
	}
	return out
}

func recvTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return recvTypeName(t.X)
	case *ast.Ident:
		return t.Name
	default:
		return ""
	}
}

func namedTypeName(t types.Type) string {
	if ptr, ok := t.(*types.Pointer); ok {
		t = ptr.Elem()
	}
	if named, ok := t.(*types.Named); ok {
		return named.Obj().Name()
	}
	return ""
}
