package sandbox

// prelude runs before any guest code. Guests attach methods to the plugin
// object (or replace it); the host only ever calls through the dispatcher,
// which is captured before guest code can shadow it.
const prelude = `
var plugin = {};

function __shelfDispatch(resolve, reject, method) {
	var args = [];
	for (var i = 3; i < arguments.length; i++) {
		args.push(JSON.parse(arguments[i]));
	}
	var target = globalThis.plugin;
	if (target === null || target === undefined || typeof target[method] !== "function") {
		reject(new TypeError("plugin does not implement " + method));
		return;
	}
	var result;
	try {
		result = target[method].apply(target, args);
	} catch (e) {
		reject(e);
		return;
	}
	Promise.resolve(result).then(resolve, reject);
}
`
