// Package noexit содержит анализатор, запрещающий прямой вызов os.Exit в функции main пакета main.
//
// Завершение через os.Exit пропускает отложенные вызовы, поэтому main должна
// возвращаться сама, а код выхода выставлять через логгер или panic.
package noexit

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/types/typeutil"
)

// NoExitAnalyzer сообщает о вызовах os.Exit внутри func main пакета main
var NoExitAnalyzer = &analysis.Analyzer{
	Name:     "noexit",
	Doc:      "запрещает прямой вызов os.Exit в функции main пакета main",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	if pass.Pkg.Name() != "main" {
		return nil, nil
	}

	// сгенерированный go test main тоже вызывает os.Exit
	generated := make(map[*ast.File]bool)
	for _, file := range pass.Files {
		generated[file] = ast.IsGenerated(file)
	}

	ins := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	ins.WithStack([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node, push bool, stack []ast.Node) bool {
		if !push || !isExit(pass.TypesInfo, n.(*ast.CallExpr)) {
			return true
		}
		file, _ := stack[0].(*ast.File)
		if file == nil || generated[file] {
			return true
		}
		if fn := enclosingFunc(stack); fn != nil && fn.Name.Name == "main" && fn.Recv == nil {
			pass.Reportf(n.Pos(), "прямой вызов os.Exit в функции main запрещен")
		}
		return true
	})
	return nil, nil
}

// isExit определяет вызов os.Exit, в том числе через псевдоним импорта
func isExit(info *types.Info, call *ast.CallExpr) bool {
	fn, ok := typeutil.Callee(info, call).(*types.Func)
	if !ok || fn.Pkg() == nil {
		return false
	}
	return fn.Pkg().Path() == "os" && fn.Name() == "Exit"
}

// enclosingFunc возвращает ближайшее объявление функции; литералы не прерывают поиск
func enclosingFunc(stack []ast.Node) *ast.FuncDecl {
	for i := len(stack) - 1; i >= 0; i-- {
		if fn, ok := stack[i].(*ast.FuncDecl); ok {
			return fn
		}
	}
	return nil
}
