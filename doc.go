/*
Package cors provides [net/http] middleware for
[Cross-Origin Resource Sharing (CORS)].

The middleware sits in front of an arbitrary handler and, on the basis of
a policy configured once at startup, classifies each incoming request as
a CORS-preflight request, an actual (i.e. non-preflight) CORS request, or
a request that CORS doesn't concern at all. Preflight requests get
answered on the policy's behalf, successfully or not, without ever
reaching the wrapped handler; actual CORS requests reach the wrapped
handler unconditionally and merely have their responses decorated with
the relevant CORS headers, or not at all when the policy rejects their
origin. Requests that lack an Origin header pass through untouched.

Care is required for CORS middleware to work as intended.
Be particularly wary of negative interference from other software
components that play a role in processing requests and composing their
responses, including intermediaries (proxies and gateways), routers,
other middleware in the chain, and the ultimate handler.
Follow the rules listed below:

  - Because [CORS-preflight requests] use [OPTIONS] as their method,
    you should not prevent OPTIONS requests from reaching your CORS
    middleware. Otherwise, preflight requests will not get properly
    handled and browser-based clients will likely experience
    CORS-related errors.
  - Because [CORS-preflight requests are not authenticated],
    authentication should not take place "ahead of" a CORS middleware
    (e.g. in a reverse proxy or in some middleware further up the chain).
    However, a CORS middleware may wrap an authentication middleware.
  - Intermediaries may alter the value of the [Vary] header that is set
    by this library's middleware, but they must preserve all of its
    elements.
  - Multiple CORS middleware must not be stacked.

[CORS-preflight requests are not authenticated]: https://fetch.spec.whatwg.org/#cors-protocol-and-credentials
[CORS-preflight requests]: https://developer.mozilla.org/en-US/docs/Glossary/Preflight_request
[Cross-Origin Resource Sharing (CORS)]: https://developer.mozilla.org/en-US/docs/Web/HTTP/CORS
[OPTIONS]: https://developer.mozilla.org/en-US/docs/Web/HTTP/Methods/OPTIONS
[Vary]: https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Vary
*/
package cors
