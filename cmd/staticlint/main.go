// Package main содержит multichecker для статического анализа кода сервиса коротких ссылок.
//
// Multichecker объединяет следующие группы анализаторов:
//
// 1. Стандартные анализаторы из golang.org/x/tools/go/analysis/passes:
//   - nilness: проверяет возможные разыменования nil указателей
//   - shadow: обнаруживает затенение переменных
//   - unreachable: находит недостижимый код
//   - printf: проверяет корректность форматных строк
//   - assign: обнаруживает бесполезные присваивания
//   - atomic: проверяет правильность использования sync/atomic
//   - bools: анализирует булевы выражения
//   - copylock: обнаруживает копирование значений с мьютексами
//   - errorsas: проверяет второй аргумент errors.As
//   - lostcancel: находит неотменённые контексты
//   - httpresponse: проверяет использование http.Response до проверки ошибки
//   - unusedresult: находит неиспользованные результаты чистых функций
//
// 2. Все анализаторы класса SA из staticcheck.io.
//
// 3. Выборочные анализаторы других классов staticcheck.io:
//   - ST1000: наличие комментария пакета
//   - ST1005: оформление текстов ошибок
//   - S1000: упрощение select с одним case
//
// 4. errcheck: проверяет обработку возвращаемых ошибок.
//
// 5. Собственный анализатор noexit: запрещает прямой вызов os.Exit в функции main пакета main.
//
// Использование:
//
//	go run ./cmd/staticlint ./...
package main

import (
	"github.com/kisielk/errcheck/errcheck"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
	"golang.org/x/tools/go/analysis/passes/assign"
	"golang.org/x/tools/go/analysis/passes/atomic"
	"golang.org/x/tools/go/analysis/passes/bools"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/errorsas"
	"golang.org/x/tools/go/analysis/passes/httpresponse"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/nilness"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/shadow"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"golang.org/x/tools/go/analysis/passes/unusedresult"
	"honnef.co/go/tools/simple"
	"honnef.co/go/tools/staticcheck"
	"honnef.co/go/tools/stylecheck"

	"github.com/tempizhere/shortlink/cmd/staticlint/noexit"
)

// выборочные проверки staticcheck вне класса SA
var extraChecks = map[string]bool{
	"ST1000": true,
	"ST1005": true,
	"S1000":  true,
}

func analyzers() []*analysis.Analyzer {
	list := []*analysis.Analyzer{
		nilness.Analyzer,
		shadow.Analyzer,
		unreachable.Analyzer,
		printf.Analyzer,
		assign.Analyzer,
		atomic.Analyzer,
		bools.Analyzer,
		copylock.Analyzer,
		errorsas.Analyzer,
		lostcancel.Analyzer,
		httpresponse.Analyzer,
		unusedresult.Analyzer,
	}

	for _, a := range staticcheck.Analyzers {
		list = append(list, a.Analyzer)
	}
	for _, a := range stylecheck.Analyzers {
		if extraChecks[a.Analyzer.Name] {
			list = append(list, a.Analyzer)
		}
	}
	for _, a := range simple.Analyzers {
		if extraChecks[a.Analyzer.Name] {
			list = append(list, a.Analyzer)
		}
	}

	return append(list, errcheck.Analyzer, noexit.NoExitAnalyzer)
}

func main() {
	multichecker.Main(analyzers()...)
}
