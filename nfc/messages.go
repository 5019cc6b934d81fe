package nfc

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var userMessages = map[Status]map[language.Tag]string{
	StatusSuccess: {
		language.English: "Document data was read successfully.",
		language.Russian: "Данные успешно считаны.",
	},
	StatusNFCNotAvailable: {
		language.English: "NFC is not available. Enable NFC or connect a contactless reader.",
		language.Russian: "NFC недоступен. Включите NFC в настройках устройства.",
	},
	StatusNFCNotISODep: {
		language.English: "The document does not use the required NFC protocol. Make sure it is an electronic passport or ID card.",
		language.Russian: "Документ не поддерживает требуемый протокол NFC. Убедитесь, что это электронный паспорт (eMRTD).",
	},
	StatusAppletSelectionFailed: {
		language.English: "Could not communicate with the document chip. Place the document flat on the reader and try again.",
		language.Russian: "Не удалось установить связь с чипом документа. Убедитесь, что документ правильно расположен на NFC-датчике.",
	},
	StatusBACFailed: {
		language.English: "Chip authentication failed. Check the document number, date of birth and date of expiry.",
		language.Russian: "Ошибка аутентификации с чипом. Проверьте корректность данных MRZ (номер документа, дата рождения, срок действия).",
	},
	StatusPACEFailed: {
		language.English: "Secure connection with the document could not be established. Hold the document still and try again.",
		language.Russian: "Не удалось установить защищённое соединение с документом. Удерживайте документ неподвижно и попробуйте ещё раз.",
	},
	StatusPACERequired: {
		language.English: "This document uses PACE protection, which this reader version cannot use.",
		language.Russian: "Документ использует современную защиту (PACE). Чтение не поддерживается текущей версией приложения.",
	},
	StatusDGReadError: {
		language.English: "Reading data from the chip failed. Keep the document still and scan again.",
		language.Russian: "Ошибка чтения данных с чипа. Попробуйте повторить сканирование, удерживая документ неподвижно.",
	},
	StatusPartialRead: {
		language.English: "Only part of the data was read. The face image is missing or damaged.",
		language.Russian: "Данные считаны частично. Фото лица отсутствует или повреждено.",
	},
	StatusUnknownError: {
		language.English: "Something went wrong while reading the document. Please try again.",
		language.Russian: "Произошла ошибка при чтении NFC. Попробуйте ещё раз.",
	},
}

var supportedLanguages = language.NewMatcher([]language.Tag{language.English, language.Russian})

func init() {
	for status, translations := range userMessages {
		for tag, text := range translations {
			if err := message.SetString(tag, messageKey(status), text); err != nil {
				panic(err)
			}
		}
	}
}

func messageKey(s Status) string {
	return "status." + string(s)
}

// UserMessage returns the operator facing text for the status in the closest
// supported language. English is the fallback.
func (s Status) UserMessage(tag language.Tag) string {
	if _, ok := userMessages[s]; !ok {
		s = StatusUnknownError
	}
	matched, _, _ := supportedLanguages.Match(tag)
	base, _ := matched.Base()
	return message.NewPrinter(language.Make(base.String())).Sprintf(messageKey(s))
}

// ParseLanguage resolves a config value such as "ru" or "en-GB", defaulting
// to English.
func ParseLanguage(s string) language.Tag {
	tag, err := language.Parse(s)
	if err != nil {
		return language.English
	}
	return tag
}
