package notify

import (
	"fmt"
	"strings"

	"github.com/osteele/liquid"
)

// Template names.
const (
	TemplateNewLead     = "new_lead"
	TemplateBadSource   = "bad_source"
	TemplateBlacklisted = "blacklisted"
	TemplateReport      = "report"
)

// Message bodies use Telegram legacy Markdown. Missing bindings are falsy,
// so optional lines are simply left out of the bindings map.
var defaultTemplates = map[string]string{
	TemplateNewLead: "🆕 *Новая заявка!*\n\n" +
		"📞 Телефон: `{{ phone }}`\n" +
		"{% if phone_type %}📱 Тип: {{ phone_type | md }}\n{% endif %}" +
		"{% if provider %}📡 Оператор: {{ provider | md }}\n{% endif %}" +
		"{% if region %}📍 Регион: {{ region | md }}\n{% endif %}" +
		"{% if name %}👤 Имя: {{ name | md }}\n{% endif %}" +
		"{% if email %}📧 Email: {{ email | md }}\n{% endif %}" +
		"{% if utm %}\n🔗 UTM: {{ utm | md }}\n{% endif %}" +
		"{% if warnings %}⚠️ Риск: {{ risk_score }} ({{ warnings | md }})\n{% endif %}",

	TemplateBadSource: "🚨 *АЛЕРТ: Плохой источник трафика*\n\n" +
		"Источник: `{{ source }}`\n" +
		"Кампания: `{{ campaign }}`\n" +
		"Площадка: `{{ content }}`\n\n" +
		"📊 Статистика за период:\n" +
		"• Всего заявок: {{ total }}\n" +
		"• Отклонено: {{ rejected }}\n" +
		"• Процент мусора: {{ rate | pct }}%\n\n" +
		"💡 *Рекомендуется добавить в исключения*",

	TemplateBlacklisted: "⛔ *Площадка заблокирована*\n\n" +
		"`{{ key }}`\n" +
		"Заявок: {{ total }}, отклонено: {{ rejected }} ({{ rate | pct }}%)\n" +
		"Блокировка на {{ ttl_days }} дн.",

	TemplateReport: "📊 *Отчёт о качестве заявок*\n\n" +
		"📅 Период: {{ period_start }} - {{ period_end }}\n\n" +
		"📈 *Общая статистика:*\n" +
		"• Всего заявок: {{ total }}\n" +
		"• Отклонено: {{ rejected }}\n" +
		"• Процент мусора: {{ rate | pct }}%\n\n" +
		"{% if reasons %}❌ *Топ причин отклонения:*\n" +
		"{% for r in reasons %}• {{ r.reason | md }}: {{ r.count }}\n{% endfor %}\n{% endif %}" +
		"{% if bad_sources %}🚨 *ПЛОХИЕ ИСТОЧНИКИ (>{{ bad_rate | pct }}% мусора):*\n\n" +
		"{% for s in bad_sources %}⚠️ `{{ s.source }}/{{ s.campaign }}`\n" +
		"   Площадка: `{{ s.content }}`\n" +
		"   Заявок: {{ s.total }}, отклонено: {{ s.rejected }} ({{ s.rate | pct }}%)\n\n{% endfor %}" +
		"💡 _Рекомендуется добавить эти площадки в исключения_" +
		"{% else %}✅ Плохих источников не обнаружено{% endif %}" +
		"{% if link %}\n\n📎 {{ link }}{% endif %}",
}

// Templates renders notification bodies with Liquid.
type Templates struct {
	engine    *liquid.Engine
	templates map[string]*liquid.Template
}

// NewTemplates parses the built-in templates, replacing any that appear in
// overrides.
func NewTemplates(overrides map[string]string) (*Templates, error) {
	engine := liquid.NewEngine()
	engine.RegisterFilter("md", escapeMarkdown)
	engine.RegisterFilter("pct", func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	})

	t := &Templates{engine: engine, templates: make(map[string]*liquid.Template)}
	for name, src := range defaultTemplates {
		if o, ok := overrides[name]; ok && o != "" {
			src = o
		}
		tpl, err := engine.ParseString(src)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
		t.templates[name] = tpl
	}
	return t, nil
}

// Render executes a named template.
func (t *Templates) Render(name string, bindings map[string]any) (string, error) {
	tpl, ok := t.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	out, err := tpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimRight(out, "\n"), nil
}

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
