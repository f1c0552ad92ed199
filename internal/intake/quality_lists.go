package intake

var disposableDomains = []string{
	"mailinator.com", "mailinator.net", "mailinator.org",
	"guerrillamail.com", "guerrillamail.org", "guerrillamail.net",
	"guerrillamail.biz", "guerrillamail.info", "guerrillamail.de", "guerrillamailblock.com",
	"10minutemail.com", "10minutemail.net", "10minutemail.org",
	"tempmail.com", "tempmail.net", "temp-mail.org", "temp-mail.ru",
	"throwaway.email", "throwawaymail.com",
	"fakeinbox.com", "fakemailgenerator.com",
	"getnada.com", "nada.email",
	"sharklasers.com", "spam4.me", "grr.la",
	"yopmail.com", "yopmail.fr", "yopmail.net",
	"maildrop.cc", "mailsac.com",
	"dispostable.com", "disposablemail.com",
	"tempr.email", "discard.email",
	"emailondeck.com", "inboxkitten.com",
	"mohmal.com", "mohmal.in", "tempail.com",
	"mailcatch.com", "mailnesia.com",
	"trashmail.com", "trashmail.net", "trashmail.org", "trashemail.de",
	"spam.la", "spamgourmet.com",
	"mytemp.email", "mt2015.com",
	"tmpmail.org", "tmpmail.net",
	"getairmail.com", "33mail.com",
	"burnermail.io", "emailfake.com",
	"fakemail.net", "fakebox.org",
	"mintemail.com", "tempmailaddress.com",
	"dropmail.me", "emkei.cz",
	"mailtemp.net", "tempsky.com",
	"spamavert.com", "nomail.xl.cx",
	"bobmail.info", "mailexpire.com",
	"mailmoat.com", "incognitomail.com",
	"anonymbox.com", "notmailinator.com",
	"mailhazard.com", "mailhazard.us",
	"spambox.us", "spambox.xyz",
	"throwam.com", "getonemail.com",
	"emailtemporario.com.br", "tempinbox.com",
	"mailforspam.com", "mvrht.com", "filzmail.com",
	"crazymailing.com", "jetable.org",
	"mailnator.com", "bugmenot.com",
	"classesmail.com", "deadaddress.com",
	"despammed.com", "devnullmail.com",
	"dodgeit.com", "dodgit.com",
	"dotmsg.com", "e4ward.com",
	"emailias.com", "emailsensei.com",
	"emailthe.net", "emailtmp.com",
	"emailwarden.com", "enterto.com",
	"ephemail.net", "evopo.com",
	"explodemail.com", "express.net.ua",
	"eyepaste.com", "fastacura.com", "fizmail.com",
	"emailna.co", "mailbox.in.ua", "mail.tm", "tempmailo.com",
}

// Compared against the lower-cased, whitespace-collapsed name.
var garbageNames = []string{
	"test", "тест", "testing", "тестовый",
	"demo", "демо", "example", "пример",
	"sample", "dummy", "fake", "фейк",
	"asdf", "asdfg", "asdfgh", "asdfghjk",
	"qwerty", "qwert", "qwertyuiop",
	"йцукен", "йцукенг", "йцукенгш",
	"zxcvbn", "zxcvb",
	"xxx", "ххх", "aaa", "ааа",
	"bbb", "ббб", "ccc", "ссс",
	"123", "1234", "12345",
	"abc", "абв", "abcd",
	"none", "null", "undefined",
	"na", "n/a", "нет", "no",
	"john doe", "jane doe",
	"вася пупкин", "иван иванов", "петр петров",
	"vasia pupkin", "ivan ivanov",
	"user", "пользователь", "клиент", "client",
	"customer", "guest", "гость",
	"admin", "administrator", "root",
	"аноним", "anonymous", "anon",
}
