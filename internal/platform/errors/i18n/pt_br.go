package i18n

var ptBRMessages = map[Code]string{
	CodeNotFound:               "{{if .Resource}}{{.Resource}}{{else}}recurso{{end}} não encontrado",
	CodeUnauthorized:           "você não tem permissão para realizar esta ação",
	CodeCallerMissing:          "identidade do chamador é obrigatória",
	CodeInvalidAmount:          "o valor deve ser maior que zero",
	CodeInvalidDuration:        "a duração deve ser maior que zero",
	CodeInvalidArgument:        "{{if .Field}}{{.Field}} é inválido{{else}}argumento inválido{{end}}",
	CodeInvalidState:           "a campanha não permite esta operação no estado atual",
	CodeDeadlinePassed:         "o prazo da campanha já terminou",
	CodeDeadlineNotPassed:      "o prazo da campanha ainda não terminou",
	CodeGoalMet:                "a campanha atingiu a meta; reembolsos não estão disponíveis",
	CodeInsufficientFunds:      "o valor solicitado {{.Requested}} excede os fundos disponíveis {{.Available}}",
	CodeNoContribution:         "você não possui contribuição para reembolsar",
	CodeTransferOutcomeCount:   "a confirmação da transferência trouxe um número inesperado de resultados",
	CodeTransferAmountMismatch: "o valor da confirmação não corresponde ao saque pendente",
	CodeTransferSubmitFailed:   "a transferência não pôde ser enviada; tente novamente mais tarde",
	CodeTransferInvalidReport:  "o relatório de transferência é inválido",

	CodeTransferSubmitUnconfirmed: "a transferência {{.TransferID}} foi enviada mas não confirmada; o resultado será aplicado quando chegar",
}
