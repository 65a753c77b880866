// Package middleware содержит HTTP middleware сервиса коротких ссылок:
// логирование запросов, определение владельца, проверку доверенной подсети и сжатие ответов.
package middleware
