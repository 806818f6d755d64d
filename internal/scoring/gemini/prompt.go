package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"miriesgo/internal/scoring/models"
)

const promptTemplate = `Eres un analista de riesgo crediticio experto en el mercado colombiano.
Analiza el siguiente reporte de crédito simplificado y calcula un puntaje de riesgo en la escala de 300 a 850:
- 300-579: Muy Malo (Riesgo Muy Alto)
- 580-669: Regular (Riesgo Alto)
- 670-739: Bueno (Riesgo Medio)
- 740-799: Muy Bueno (Riesgo Bajo)
- 800-850: Excepcional (Riesgo Muy Bajo)

Considera el historial de pagos, el nivel de endeudamiento frente a los montos originales,
los estados de los créditos (Castigado, En Jurídica y Fraude son muy negativos)
y las marcas del cliente (Fraude y Robo de identidad son fuertemente negativas).

Reporte:
%s

Responde únicamente con un objeto JSON, sin texto adicional, con esta forma exacta:
{"score": <entero entre 300 y 850>, "assessment": "<uno de: Muy Bajo, Bajo, Medio, Alto, Muy Alto>", "reasoning": "<frase corta de máximo 15 palabras>"}`

func buildPrompt(report models.SimplifiedReport) (string, error) {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(promptTemplate, body), nil
}

// stripFences removes markdown code fences the model sometimes wraps JSON in.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}
